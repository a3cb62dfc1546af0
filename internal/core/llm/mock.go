package llm

import (
	"context"
	"sync"
)

// mockProvider implements the Provider interface for testing purposes.
// Responses are consumed in FIFO order; when the queue is empty every
// call returns the default response.
type mockProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []Request
}

const mockDefaultResponse = `{"ok":true}`

// NewMockProvider creates a new mock model provider.
func NewMockProvider() *mockProvider {
	return &mockProvider{}
}

// Name returns the provider identifier.
func (p *mockProvider) Name() ProviderName {
	return ProviderMock
}

// IsAvailable returns true as mock is always available.
func (p *mockProvider) IsAvailable() bool {
	return true
}

// Priority returns the provider priority.
func (p *mockProvider) Priority() int {
	return PriorityMock
}

// Enqueue adds a canned response to the queue.
func (p *mockProvider) Enqueue(response string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.responses = append(p.responses, response)
	p.errs = append(p.errs, nil)
}

// EnqueueError adds a failing response to the queue.
func (p *mockProvider) EnqueueError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.responses = append(p.responses, "")
	p.errs = append(p.errs, err)
}

// Calls returns a copy of all requests seen so far.
func (p *mockProvider) Calls() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Request, len(p.calls))
	copy(out, p.calls)

	return out
}

// Complete implements Provider interface.
func (p *mockProvider) Complete(_ context.Context, req Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)

	if len(p.responses) == 0 {
		return mockDefaultResponse, nil
	}

	response := p.responses[0]
	err := p.errs[0]
	p.responses = p.responses[1:]
	p.errs = p.errs[1:]

	if err != nil {
		return "", err
	}

	return response, nil
}

// Ensure mockProvider implements Provider interface.
var _ Provider = (*mockProvider)(nil)
