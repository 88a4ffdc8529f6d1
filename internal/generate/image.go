package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"github.com/replicate/replicate-go"
	"go.uber.org/zap"
)

// ErrNoImageOutput is returned when the image model produced no usable URL.
var ErrNoImageOutput = errors.New("image model returned no output")

const imagePrompt = `orangecat as the main subject, minimal illustration, soft pastel palette.
Theme: exploratory careers, hidden skills, side quests.
Visual metaphors: maps, paths, icons, modular systems.
No text, no logos, calm, modern.
Inspired by: %s`

// ImagePrompt returns the illustration prompt for a post.
func ImagePrompt(postText string) string {
	return fmt.Sprintf(imagePrompt, postText)
}

// Runner runs a model prediction to completion. *replicate.Client satisfies it.
type Runner interface {
	Run(ctx context.Context, identifier string, input replicate.PredictionInput, webhook *replicate.Webhook) (replicate.PredictionOutput, error)
}

var _ Runner = (*replicate.Client)(nil)

// ImageGenerator renders an illustration for a post and stores it on disk.
type ImageGenerator struct {
	runner     Runner
	httpClient *http.Client
	cfg        config.ImageConfig
	outputPath string
	logger     *zap.Logger
}

// ImageOption configures an ImageGenerator.
type ImageOption func(*ImageGenerator)

// WithImageLogger sets the logger.
func WithImageLogger(l *zap.Logger) ImageOption {
	return func(g *ImageGenerator) { g.logger = l }
}

// WithRunner replaces the Replicate client.
func WithRunner(r Runner) ImageOption {
	return func(g *ImageGenerator) { g.runner = r }
}

// WithHTTPClient sets the client used to download the rendered image.
func WithHTTPClient(c *http.Client) ImageOption {
	return func(g *ImageGenerator) { g.httpClient = c }
}

// NewImageGenerator creates a generator writing to imageDir/cfg.FileName.
func NewImageGenerator(cfg *config.ImageConfig, imageDir string, opts ...ImageOption) (*ImageGenerator, error) {
	g := &ImageGenerator{
		cfg:        *cfg,
		outputPath: filepath.Join(imageDir, cfg.FileName),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	if g.runner == nil {
		if cfg.APIToken == "" {
			return nil, errors.New("replicate api token is not configured")
		}
		client, err := replicate.NewClient(replicate.WithToken(cfg.APIToken))
		if err != nil {
			return nil, fmt.Errorf("replicate client: %w", err)
		}
		g.runner = client
	}
	return g, nil
}

// Input returns the model input for a prompt.
func (g *ImageGenerator) Input(prompt string) replicate.PredictionInput {
	return replicate.PredictionInput{
		"model":               "schnell",
		"prompt":              prompt,
		"go_fast":             true,
		"lora_scale":          g.cfg.LoraScale,
		"megapixels":          "1",
		"num_outputs":         1,
		"aspect_ratio":        g.cfg.AspectRatio,
		"output_format":       g.cfg.OutputFormat,
		"guidance_scale":      g.cfg.GuidanceScale,
		"output_quality":      g.cfg.OutputQuality,
		"prompt_strength":     0.8,
		"extra_lora_scale":    g.cfg.LoraScale,
		"num_inference_steps": g.cfg.NumInferenceSteps,
	}
}

// Generate runs the image model for postText, downloads the first output and
// returns the path it was written to.
func (g *ImageGenerator) Generate(ctx context.Context, postText string) (string, error) {
	out, err := g.runner.Run(ctx, g.cfg.Model, g.Input(ImagePrompt(postText)), nil)
	if err != nil {
		return "", fmt.Errorf("run image model: %w", err)
	}
	url, err := firstURL(out)
	if err != nil {
		return "", err
	}
	if err := g.download(ctx, url); err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	g.logger.Info("image generated", zap.String("path", g.outputPath))
	return g.outputPath, nil
}

// firstURL extracts the first output URL from a prediction output, which is
// either a single URL or a list of them.
func firstURL(out replicate.PredictionOutput) (string, error) {
	switch v := out.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case []string:
		if len(v) > 0 && v[0] != "" {
			return v[0], nil
		}
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return "", ErrNoImageOutput
}

func (g *ImageGenerator) download(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := os.MkdirAll(filepath.Dir(g.outputPath), 0755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	tmp := g.outputPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, g.outputPath)
}
