package config

import (
	"os"
	"strconv"
	"time"
)

// DefaultKeywords are searched in order by the reply flow; earlier keywords win when the cap is hit.
var DefaultKeywords = []string{
	"career path",
	"career advice",
	"learning new skills",
	"side project",
	"freelance work",
	"nonlinear career",
	"creative work",
}

const (
	defaultOpenRouterURL = "https://openrouter.ai/api/v1"
	defaultImageModel    = "sundai-club/flux-orangecat:8a1f20975a367c8c0f0538062bc99456f6cfd5b6b7a433a30ec45433aa494552"

	defaultChunkOverlap = 100
	defaultMinRelevance = 0.6
)

// newConfig returns a Config seeded with the defaults whose zero value is a valid setting.
// Decoding on top of it keeps an explicit 0 from the file.
func newConfig() Config {
	return Config{
		Search: SearchConfig{ChunkOverlap: defaultChunkOverlap},
		Reply:  ReplyConfig{MinRelevance: defaultMinRelevance},
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
// Fields where 0 is meaningful (chunk_overlap, min_relevance) are seeded by Load and Default instead.
// Secrets left empty in the file fall back to the well-known environment variables.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "./data/rag_index.vec"
	}
	if cfg.Storage.MetadataPath == "" {
		cfg.Storage.MetadataPath = "./data/rag_index_meta.json"
	}
	if cfg.Storage.ImageDir == "" {
		cfg.Storage.ImageDir = "./generated_images"
	}

	envDefault(&cfg.Notion.APIKey, "NOTION_API_KEY")
	envDefault(&cfg.Notion.DatabaseID, "NOTION_DATABASE_ID")
	if cfg.Notion.TitleProperty == "" {
		cfg.Notion.TitleProperty = "Name"
	}
	if cfg.Notion.ContentProperty == "" {
		cfg.Notion.ContentProperty = "Content"
	}
	if cfg.Notion.ExamplesProperty == "" {
		cfg.Notion.ExamplesProperty = "Example Posts"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.BaseURL = defaultOpenRouterURL
	}
	envDefault(&cfg.Embedding.APIKey, "OPENROUTER_API_KEY")
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 96
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.BaseURL = defaultOpenRouterURL
	}
	switch cfg.LLM.Provider {
	case "anthropic":
		envDefault(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	case "gemini":
		envDefault(&cfg.LLM.APIKey, "GOOGLE_API_KEY")
	default:
		envDefault(&cfg.LLM.APIKey, "OPENROUTER_API_KEY")
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "nvidia/nemotron-3-nano-30b-a3b"
	}
	if cfg.LLM.ReplyModel == "" {
		cfg.LLM.ReplyModel = cfg.LLM.Model
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}

	envDefault(&cfg.Image.APIToken, "REPLICATE_API_TOKEN")
	if cfg.Image.Model == "" {
		cfg.Image.Model = defaultImageModel
	}
	if cfg.Image.NumInferenceSteps == 0 {
		cfg.Image.NumInferenceSteps = 4
	}
	if cfg.Image.GuidanceScale == 0 {
		cfg.Image.GuidanceScale = 3
	}
	if cfg.Image.AspectRatio == "" {
		cfg.Image.AspectRatio = "1:1"
	}
	if cfg.Image.OutputFormat == "" {
		cfg.Image.OutputFormat = "png"
	}
	if cfg.Image.OutputQuality == 0 {
		cfg.Image.OutputQuality = 80
	}
	if cfg.Image.LoraScale == 0 {
		cfg.Image.LoraScale = 1.5
	}
	if cfg.Image.FileName == "" {
		cfg.Image.FileName = "hiddenclass." + cfg.Image.OutputFormat
	}

	envDefault(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	if cfg.Telegram.ChatID == 0 {
		if v, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
			cfg.Telegram.ChatID = v
		}
	}
	if cfg.Telegram.PollInterval == 0 {
		cfg.Telegram.PollInterval = time.Second
	}
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = 30
	}

	envDefault(&cfg.Mastodon.BaseURL, "MASTODON_BASE_URL")
	envDefault(&cfg.Mastodon.AccessToken, "MASTODON_ACCESS_TOKEN")
	if cfg.Mastodon.SearchRate == 0 {
		cfg.Mastodon.SearchRate = 1
	}

	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 500
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}

	if cfg.Reply.Keywords == nil {
		cfg.Reply.Keywords = append([]string(nil), DefaultKeywords...)
	}
	if cfg.Reply.MaxPosts == 0 {
		cfg.Reply.MaxPosts = 5
	}
}

func envDefault(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}
