// Package config provides configuration loading and structs for the content pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Notion    NotionConfig    `yaml:"notion"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Image     ImageConfig     `yaml:"image"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Mastodon  MastodonConfig  `yaml:"mastodon"`
	Search    SearchConfig    `yaml:"search"`
	Reply     ReplyConfig     `yaml:"reply"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the index pair and generated images.
type StorageConfig struct {
	IndexPath    string `yaml:"index_path"`
	MetadataPath string `yaml:"metadata_path"`
	ImageDir     string `yaml:"image_dir"`
}

// NotionConfig holds the content database connection and property names.
type NotionConfig struct {
	APIKey           string `yaml:"api_key"`
	DatabaseID       string `yaml:"database_id"`
	TitleProperty    string `yaml:"title_property"`
	ContentProperty  string `yaml:"content_property"`
	ExamplesProperty string `yaml:"examples_property"`
}

// EmbeddingConfig holds embedding provider settings.
// Provider is one of "openai" (any OpenAI-compatible API), "ollama", or "mock".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig holds language model settings.
// Provider is one of "openai", "anthropic", "gemini", "ollama", or "dummy".
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	ReplyModel string `yaml:"reply_model"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// ImageConfig holds image model settings.
type ImageConfig struct {
	Enabled           *bool   `yaml:"enabled"`
	APIToken          string  `yaml:"api_token"`
	Model             string  `yaml:"model"`
	NumInferenceSteps int     `yaml:"num_inference_steps"`
	GuidanceScale     float64 `yaml:"guidance_scale"`
	AspectRatio       string  `yaml:"aspect_ratio"`
	OutputFormat      string  `yaml:"output_format"`
	OutputQuality     int     `yaml:"output_quality"`
	LoraScale         float64 `yaml:"lora_scale"`
	FileName          string  `yaml:"file_name"`
}

// EnabledOrDefault returns whether image generation runs; defaults to true when unset.
func (c *ImageConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// TelegramConfig holds review bot settings.
type TelegramConfig struct {
	BotToken      string        `yaml:"bot_token"`
	ChatID        int64         `yaml:"chat_id"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PollTimeout   int           `yaml:"poll_timeout"`
	ReviewTimeout time.Duration `yaml:"review_timeout"`
}

// MastodonConfig holds social network settings.
type MastodonConfig struct {
	BaseURL     string  `yaml:"base_url"`
	AccessToken string  `yaml:"access_token"`
	SearchRate  float64 `yaml:"search_rate"`
}

// SearchConfig holds chunking and retrieval settings.
type SearchConfig struct {
	Enabled      *bool `yaml:"enabled"`
	ChunkSize    int   `yaml:"chunk_size"`
	ChunkOverlap int   `yaml:"chunk_overlap"`
	TopK         int   `yaml:"top_k"`
}

// EnabledOrDefault returns whether retrieval runs before generation; defaults to true when unset.
func (c *SearchConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// ReplyConfig holds settings for the reply flow.
type ReplyConfig struct {
	Keywords     []string `yaml:"keywords"`
	MaxPosts     int      `yaml:"max_posts"`
	MinRelevance float64  `yaml:"min_relevance"`
}

// Load reads and parses the config file at path, expands ${VAR} references and paths,
// and applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := newConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	expandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config built from defaults and environment variables only.
// Relative paths are resolved against the current directory.
func Default() *Config {
	cfg := newConfig()
	ApplyDefaults(&cfg)
	if cwd, err := os.Getwd(); err == nil {
		expandPaths(&cfg, cwd)
	}
	return &cfg
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.MetadataPath = expandPath(cfg.Storage.MetadataPath, configDir)
	cfg.Storage.ImageDir = expandPath(cfg.Storage.ImageDir, configDir)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// paths starting with "~/" are relative to the home directory; other relative paths are
// relative to configDir as well.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
