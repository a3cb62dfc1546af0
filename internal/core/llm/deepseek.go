package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/platform/retry"
)

const rateLimiterBurst = 5

// deepseekProvider talks to the DeepSeek API through its OpenAI
// compatible endpoint.
type deepseekProvider struct {
	client      *openai.Client
	model       string
	apiKey      string
	rateLimiter *rate.Limiter
	logger      *zerolog.Logger
}

// NewDeepSeekProvider creates the primary model provider.
func NewDeepSeekProvider(cfg *config.Config, logger *zerolog.Logger) Provider {
	clientCfg := openai.DefaultConfig(cfg.DeepSeekAPIKey)
	clientCfg.BaseURL = cfg.DeepSeekBaseURL

	return &deepseekProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.DeepSeekModel,
		apiKey:      cfg.DeepSeekAPIKey,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.LLMRateRPS), rateLimiterBurst),
		logger:      logger,
	}
}

func (p *deepseekProvider) Name() ProviderName {
	return ProviderDeepSeek
}

func (p *deepseekProvider) IsAvailable() bool {
	return p.apiKey != ""
}

func (p *deepseekProvider) Priority() int {
	return PriorityPrimary
}

func (p *deepseekProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	params := req.Mode.params()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	var resp openai.ChatCompletionResponse

	retryCfg := retry.DefaultConfig()
	retryCfg.OnRetry = func(attempt int, err error) {
		p.logger.Warn().Err(err).Int("attempt", attempt).Msg("retrying DeepSeek request")
	}

	err := retry.Do(ctx, retryCfg, func() error {
		var callErr error

		resp, callErr = p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    messages,
			Temperature: params.temperature,
			MaxTokens:   params.maxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})

		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("deepseek chat completion: %w", err)
	}

	observability.LLMTokensPrompt.WithLabelValues(string(ProviderDeepSeek), string(req.Mode)).Add(float64(resp.Usage.PromptTokens))
	observability.LLMTokensCompletion.WithLabelValues(string(ProviderDeepSeek), string(req.Mode)).Add(float64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// Ensure deepseekProvider implements Provider interface.
var _ Provider = (*deepseekProvider)(nil)
