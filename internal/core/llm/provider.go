package llm

import "context"

// ProviderName identifies a model provider.
type ProviderName string

// Provider name constants.
const (
	ProviderDeepSeek ProviderName = "deepseek"
	ProviderGemini   ProviderName = "gemini"
	ProviderMock     ProviderName = "mock"
)

// Priority constants for provider ordering.
const (
	PriorityPrimary  = 100 // Primary provider (DeepSeek)
	PriorityFallback = 50  // First fallback (Gemini)
	PriorityMock     = 0   // Mock provider for testing
)

// Provider defines the interface for model providers.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// IsAvailable returns true if the provider is configured and available.
	IsAvailable() bool

	// Priority returns the provider priority (higher = preferred).
	Priority() int

	// Complete executes a single completion request.
	Complete(ctx context.Context, req Request) (string, error)
}
