// File: internal/vlm/gemini.go
package vlm

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/taskdroid-cli/internal/config"
)

// GeminiConnector talks to Google's Gemini models through the genai SDK,
// attaching screenshots as inline PNG parts.
type GeminiConnector struct {
	client *genai.Client
	logger *zap.Logger
	cfg    config.ModelConfig
}

// NewGeminiConnector creates the SDK client. The API key comes from
// configuration (bound to GEMINI_API_KEY).
func NewGeminiConnector(ctx context.Context, logger *zap.Logger, cfg config.ModelConfig) (*GeminiConnector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured (set GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	logger.Named("gemini").Info("Gemini connector initialized", zap.String("model", cfg.Model))
	return &GeminiConnector{client: client, logger: logger.Named("gemini"), cfg: cfg}, nil
}

// GetResponse implements Connector.
func (c *GeminiConnector) GetResponse(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading image %s: %w", path, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: int32(c.cfg.MaxTokens),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text content")
	}
	return text, nil
}
