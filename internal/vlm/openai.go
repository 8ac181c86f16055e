// File: internal/vlm/openai.go
package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskdroid-cli/internal/config"
)

// OpenAIConnector speaks the chat-completions wire format over plain HTTP.
// Besides OpenAI itself this covers every compatible endpoint (configured
// via vlm.openai.endpoint), which is why it avoids a vendor SDK.
type OpenAIConnector struct {
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.ModelConfig
}

// Chat-completions request/response shapes, limited to the fields we use.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAIConnector creates a connector for an OpenAI-compatible endpoint.
func NewOpenAIConnector(logger *zap.Logger, cfg config.ModelConfig) (*OpenAIConnector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is not configured (set OPENAI_API_KEY)")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("openai endpoint is not configured")
	}
	logger.Named("openai").Info("OpenAI connector initialized",
		zap.String("model", cfg.Model), zap.String("endpoint", cfg.Endpoint))
	return &OpenAIConnector{
		httpClient: &http.Client{},
		logger:     logger.Named("openai"),
		cfg:        cfg,
	}, nil
}

// GetResponse implements Connector.
func (c *OpenAIConnector) GetResponse(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	content := []contentPart{{Type: "text", Text: prompt}}
	for _, path := range imagePaths {
		encoded, err := encodeImageBase64(path)
		if err != nil {
			return "", err
		}
		content = append(content, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + encoded},
		})
	}

	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading chat completion response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding chat completion response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// encodeImageBase64 reads an image file and returns its base64 encoding.
func encodeImageBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
