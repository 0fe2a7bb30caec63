package resilience

import (
	"context"

	"github.com/kverner/storymark/pkg/llm"
)

// ProviderFallback implements [llm.Provider] with automatic failover across
// multiple model backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
//
// Wrapping a single provider is still useful: the breaker stops a generation
// session from hammering a backend that is consistently failing.
type ProviderFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*ProviderFallback)(nil)

// NewProviderFallback creates a [ProviderFallback] with primary as the
// preferred backend.
func NewProviderFallback(primary llm.Provider, cfg FallbackConfig) *ProviderFallback {
	return &ProviderFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional provider as a fallback.
func (f *ProviderFallback) AddFallback(provider llm.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Name returns the primary provider's name.
func (f *ProviderFallback) Name() string {
	return f.group.entries[0].value.Name()
}

// Complete sends the request to the first healthy provider and returns its
// response. If the primary fails, subsequent fallbacks are tried.
func (f *ProviderFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion sends the request to the first healthy provider and returns
// a streaming chunk channel. Only the initial connection attempt is covered by
// failover; once a stream is established, mid-stream errors are surfaced to
// the caller as FinishError chunks.
func (f *ProviderFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}
