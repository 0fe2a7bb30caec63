// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the session layer sends correct
// CompletionRequests and to feed controlled responses without a live backend.
// All fields are safe to set before calling any method; mutating them during
// a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteResponse: &llm.CompletionResponse{Content: "[[NOTES :: a1 :: ...]]"},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/kverner/storymark/pkg/llm"
)

// Compile-time assertion that Provider satisfies llm.Provider.
var _ llm.Provider = (*Provider)(nil)

// StreamCall records a single invocation of StreamCompletion.
type StreamCall struct {
	// Ctx is the context passed to StreamCompletion.
	Ctx context.Context
	// Req is the CompletionRequest passed to StreamCompletion.
	Req llm.CompletionRequest
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Attempt scripts the outcome of one StreamCompletion or Complete call when
// the provider is driven through Script. This is how retry behaviour is
// tested: earlier attempts fail, a later one succeeds.
type Attempt struct {
	// Chunks is the chunk sequence for StreamCompletion (all sent, then the
	// channel closes). For Complete, the chunk texts are concatenated into
	// the response content.
	Chunks []llm.Chunk

	// Err, if non-nil, is returned as the call error instead of any output.
	Err error
}

// Provider is a mock implementation of llm.Provider.
// Zero values for response fields cause methods to return zero values and
// nil errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Script, when non-empty, drives calls one [Attempt] at a time in order.
	// Calls beyond the end of the script reuse the final attempt.
	Script []Attempt

	// StreamChunks is the chunk sequence emitted by StreamCompletion when no
	// Script is set.
	StreamChunks []llm.Chunk

	// StreamErr, if non-nil, is returned from StreamCompletion instead of
	// starting a channel (when no Script is set).
	StreamErr error

	// CompleteResponse is returned by Complete when no Script is set.
	// May be nil (returns nil, nil).
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned from Complete (when no Script is set).
	CompleteErr error

	// --- Call records (read after test) ---

	// StreamCalls records every invocation of StreamCompletion in order.
	StreamCalls []StreamCall

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	scriptPos int
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// nextAttempt consumes the next scripted attempt. Callers must hold p.mu.
func (p *Provider) nextAttempt() Attempt {
	i := p.scriptPos
	if i >= len(p.Script) {
		i = len(p.Script) - 1
	} else {
		p.scriptPos++
	}
	return p.Script[i]
}

// StreamCompletion records the call and returns a channel that emits the
// configured chunks. If an error is configured, it returns nil and the error
// without opening a channel.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})

	var chunks []llm.Chunk
	var err error
	if len(p.Script) > 0 {
		a := p.nextAttempt()
		chunks, err = a.Chunks, a.Err
	} else {
		chunks, err = p.StreamChunks, p.StreamErr
	}
	chunks = append([]llm.Chunk(nil), chunks...)
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

// Complete records the call and returns the configured response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	if len(p.Script) > 0 {
		a := p.nextAttempt()
		p.mu.Unlock()
		if a.Err != nil {
			return nil, a.Err
		}
		resp := &llm.CompletionResponse{FinishReason: llm.FinishStop}
		for _, c := range a.Chunks {
			resp.Content += c.Text
			if c.FinishReason != "" {
				resp.FinishReason = c.FinishReason
			}
		}
		return resp, nil
	}

	resp, err := p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return resp, nil
}
