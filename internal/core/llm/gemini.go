package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/platform/retry"
)

const geminiRateLimiterBurst = 5

// geminiProvider implements the Provider interface for Google Gemini.
type geminiProvider struct {
	client      *genai.Client
	model       string
	apiKey      string
	rateLimiter *rate.Limiter
	logger      *zerolog.Logger
}

// NewGeminiProvider creates the fallback model provider.
func NewGeminiProvider(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Provider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	rateLimit := cfg.LLMRateRPS
	if rateLimit == 0 {
		rateLimit = 1
	}

	return &geminiProvider{
		client:      client,
		model:       cfg.GeminiModel,
		apiKey:      cfg.GeminiAPIKey,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), geminiRateLimiterBurst),
		logger:      logger,
	}, nil
}

func (p *geminiProvider) Name() ProviderName {
	return ProviderGemini
}

func (p *geminiProvider) IsAvailable() bool {
	return p.apiKey != ""
}

func (p *geminiProvider) Priority() int {
	return PriorityFallback
}

func (p *geminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	params := req.Mode.params()

	genModel := p.client.GenerativeModel(p.model)
	genModel.SetTemperature(params.temperature)
	genModel.SetMaxOutputTokens(int32(params.maxTokens))
	genModel.ResponseMIMEType = "application/json"

	if req.System != "" {
		genModel.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	var resp *genai.GenerateContentResponse

	retryCfg := retry.DefaultConfig()
	retryCfg.OnRetry = func(attempt int, err error) {
		p.logger.Warn().Err(err).Int("attempt", attempt).Msg("retrying Gemini request")
	}

	err := retry.Do(ctx, retryCfg, func() error {
		var callErr error

		resp, callErr = genModel.GenerateContent(ctx, genai.Text(sanitizeUTF8(req.Prompt)))

		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	if resp.UsageMetadata != nil {
		observability.LLMTokensPrompt.WithLabelValues(string(ProviderGemini), string(req.Mode)).Add(float64(resp.UsageMetadata.PromptTokenCount))
		observability.LLMTokensCompletion.WithLabelValues(string(ProviderGemini), string(req.Mode)).Add(float64(resp.UsageMetadata.CandidatesTokenCount))
	}

	content := extractGeminiResponseText(resp)
	if content == "" {
		return "", ErrEmptyResponse
	}

	return content, nil
}

func extractGeminiResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var result strings.Builder

	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					result.WriteString(string(text))
				}
			}
		}
	}

	return result.String()
}

// sanitizeUTF8 removes invalid UTF-8 sequences. The Gemini protobuf API
// requires valid UTF-8 and crawled content may carry broken bytes.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			builder.WriteRune(utf8.RuneError)

			i++
		} else {
			builder.WriteRune(r)

			i += size
		}
	}

	return builder.String()
}

// Ensure geminiProvider implements Provider interface.
var _ Provider = (*geminiProvider)(nil)
