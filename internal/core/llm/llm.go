// Package llm provides structured JSON generation over interchangeable
// model providers with priority-based fallback.
package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/config"
)

// Mode selects the sampling profile for a request.
type Mode string

const (
	// ModeFast is for cheap, high-volume classification calls.
	ModeFast Mode = "fast"
	// ModeDefault is for standard generation calls.
	ModeDefault Mode = "default"
	// ModeCreative is for long-form bilingual analysis.
	ModeCreative Mode = "creative"
)

type modeParams struct {
	temperature float32
	maxTokens   int
}

var modeSettings = map[Mode]modeParams{
	ModeFast:     {temperature: 0.1, maxTokens: 2048},
	ModeDefault:  {temperature: 0.1, maxTokens: 8192},
	ModeCreative: {temperature: 0.3, maxTokens: 8192},
}

func (m Mode) params() modeParams {
	if p, ok := modeSettings[m]; ok {
		return p
	}

	return modeSettings[ModeDefault]
}

// Request is a single completion request. System may be empty.
type Request struct {
	System string
	Prompt string
	Mode   Mode
}

// ErrEmptyResponse is returned when a provider answers with no content.
var ErrEmptyResponse = errors.New("empty model response")

// Client is the generation interface the pipeline stages depend on.
type Client interface {
	// Complete returns the raw text completion.
	Complete(ctx context.Context, req Request) (string, error)
	// GenerateJSON completes the request and unmarshals the response
	// into target, tolerating markdown fences and surrounding prose.
	GenerateJSON(ctx context.Context, req Request, target any) error
}

// New creates a client with every configured provider registered.
// DeepSeek is primary, Gemini is the fallback; with no keys configured
// a mock provider is used so local runs still work.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) Client {
	if logger == nil {
		nopLogger := zerolog.Nop()
		logger = &nopLogger
	}

	registry := NewRegistry(logger)

	if cfg.DeepSeekAPIKey != "" {
		registry.Register(NewDeepSeekProvider(cfg, logger))
	}

	if cfg.GeminiAPIKey != "" {
		geminiProvider, err := NewGeminiProvider(ctx, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create Gemini provider")
		} else {
			registry.Register(geminiProvider)
		}
	}

	if registry.ProviderCount() == 0 {
		registry.Register(NewMockProvider())
	}

	return registry
}
