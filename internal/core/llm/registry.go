package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/platform/retry"
)

// Registry errors.
var (
	ErrNoProvidersAvailable = errors.New("no model providers available")
	ErrAllProvidersFailed   = errors.New("all model providers failed")
)

// Registry manages model providers with fallback support.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderName]Provider
	order     []ProviderName // Priority order (highest first)
	retryCfg  retry.Config
	logger    *zerolog.Logger
}

// NewRegistry creates a new provider registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		providers: make(map[ProviderName]Provider),
		order:     make([]ProviderName, 0),
		retryCfg:  retry.DefaultConfig(),
		logger:    logger,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	r.providers[name] = p
	r.order = append(r.order, name)

	// Sort by priority (descending)
	sort.SliceStable(r.order, func(i, j int) bool {
		return r.providers[r.order[i]].Priority() > r.providers[r.order[j]].Priority()
	})

	r.logger.Info().
		Str("provider", string(name)).
		Int("priority", p.Priority()).
		Msg("registered model provider")
}

// ProviderCount returns the number of registered providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

func (r *Registry) orderedProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		providers = append(providers, r.providers[name])
	}

	return providers
}

// Complete implements Client with priority fallback: the highest
// priority available provider is tried first and each failure moves to
// the next one.
func (r *Registry) Complete(ctx context.Context, req Request) (string, error) {
	return r.generate(ctx, req, nil)
}

// GenerateJSON implements Client. The response may arrive wrapped in
// markdown fences or surrounded by prose; both are stripped before
// unmarshaling. A completion that does not parse is retried against the
// same provider before falling back to the next one.
func (r *Registry) GenerateJSON(ctx context.Context, req Request, target any) error {
	_, err := r.generate(ctx, req, func(content string) error {
		extracted := extractJSON(content)

		if err := json.Unmarshal([]byte(extracted), target); err != nil {
			return fmt.Errorf("unmarshal model response: %w", err)
		}

		return nil
	})

	return err
}

// generate walks providers in priority order. accept, when non-nil,
// validates each completion and an unparseable one counts as a provider
// failure after the in-provider retries are exhausted.
func (r *Registry) generate(ctx context.Context, req Request, accept func(string) error) (string, error) {
	providers := r.orderedProviders()
	if len(providers) == 0 {
		return "", ErrNoProvidersAvailable
	}

	var (
		lastErr          error
		previousProvider ProviderName
	)

	for _, p := range providers {
		if !p.IsAvailable() {
			continue
		}

		content, err := r.attempt(ctx, p, req, accept)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("provider", string(p.Name())).
				Str("mode", string(req.Mode)).
				Msg("model provider failed, trying fallback")

			lastErr = err
			previousProvider = p.Name()

			continue
		}

		if previousProvider != "" {
			observability.LLMFallbacks.WithLabelValues(string(previousProvider), string(p.Name())).Inc()

			r.logger.Info().
				Str("provider", string(p.Name())).
				Str("from_provider", string(previousProvider)).
				Msg("used fallback model provider")
		}

		return content, nil
	}

	if lastErr != nil {
		return "", errors.Join(ErrAllProvidersFailed, lastErr)
	}

	return "", ErrNoProvidersAvailable
}

// attempt runs one provider call and validates its output. The provider
// handles transport retries itself, so a failed call is permanent at
// this level; a completion that fails validation is the retryable case.
func (r *Registry) attempt(ctx context.Context, p Provider, req Request, accept func(string) error) (string, error) {
	var content string

	retryCfg := r.retryCfg
	retryCfg.OnRetry = func(attempt int, err error) {
		r.logger.Warn().
			Err(err).
			Str("provider", string(p.Name())).
			Int("attempt", attempt).
			Msg("retrying unparseable model response")
	}

	err := retry.Do(ctx, retryCfg, func() error {
		start := time.Now()

		completion, callErr := p.Complete(ctx, req)

		observability.LLMRequestLatency.WithLabelValues(string(p.Name()), string(req.Mode)).Observe(time.Since(start).Seconds())

		if callErr != nil {
			observability.LLMRequests.WithLabelValues(string(p.Name()), string(req.Mode), "error").Inc()
			return retry.Permanent(callErr)
		}

		if accept != nil {
			if parseErr := accept(completion); parseErr != nil {
				observability.LLMRequests.WithLabelValues(string(p.Name()), string(req.Mode), "error").Inc()
				return parseErr
			}
		}

		observability.LLMRequests.WithLabelValues(string(p.Name()), string(req.Mode), "success").Inc()
		content = completion

		return nil
	})

	return content, err
}

// Ensure Registry implements Client interface.
var _ Client = (*Registry)(nil)
