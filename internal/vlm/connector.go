// File: internal/vlm/connector.go

// Package vlm is the gateway to vision-language models. A Connector sends a
// text prompt plus a sequence of screenshot paths and returns the model's
// free-text reply; all structure is recovered downstream by the response
// parser, so connectors enforce no output schema.
package vlm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/taskdroid-cli/internal/config"
)

// Connector is the narrow contract every model backend implements.
type Connector interface {
	// GetResponse sends the prompt and images and returns the raw reply text.
	GetResponse(ctx context.Context, prompt string, imagePaths []string) (string, error)
}

// Gateway wraps a Connector with request throttling and a per-call timeout.
// The navigation loop is strictly sequential, but provider rate limits are
// per minute, so a limiter keeps long runs from tripping them.
type Gateway struct {
	inner   Connector
	logger  *zap.Logger
	limiter *rate.Limiter
	timeout time.Duration
}

// NewGateway constructs the configured provider's connector and wraps it.
func NewGateway(ctx context.Context, logger *zap.Logger, cfg config.VLMConfig) (*Gateway, error) {
	var inner Connector
	var err error

	switch cfg.Provider {
	case config.ProviderGemini:
		inner, err = NewGeminiConnector(ctx, logger, cfg.Gemini)
	case config.ProviderOpenAI:
		inner, err = NewOpenAIConnector(logger, cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unsupported vlm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Named("vlm").Info("VLM gateway initialized",
		zap.String("provider", string(cfg.Provider)),
		zap.Float64("requests_per_minute", cfg.RequestsPerMinute))

	return &Gateway{
		inner:   inner,
		logger:  logger.Named("vlm"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1),
		timeout: cfg.RequestTimeout,
	}, nil
}

// NewGatewayWith wraps an existing connector; used by tests.
func NewGatewayWith(logger *zap.Logger, inner Connector, rpm float64, timeout time.Duration) *Gateway {
	return &Gateway{
		inner:   inner,
		logger:  logger.Named("vlm"),
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 1),
		timeout: timeout,
	}
}

// GetResponse implements Connector.
func (g *Gateway) GetResponse(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.inner.GetResponse(callCtx, prompt, imagePaths)
	if err != nil {
		g.logger.Warn("Model call failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", err
	}
	g.logger.Debug("Model call completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("images", len(imagePaths)),
		zap.Int("reply_chars", len(text)))
	return text, nil
}
