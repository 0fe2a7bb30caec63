// Package llm defines the Provider interface for generative-language backends.
//
// A provider wraps a remote model API (Gemini, OpenAI, or anything reachable
// through any-llm-go) and exposes a uniform completion interface so the
// storymark session layer can build prompts, stream output, and inspect
// completion metadata without coupling to any specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import (
	"context"
	"fmt"
)

// Message represents a single message in a model conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation. Providers without a dedicated system slot prepend it
	// as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness. Annotation sessions run cool
	// (0.3 by default) because the output must follow a strict grammar.
	Temperature float64

	// TopP is the nucleus-sampling parameter. Zero means provider default.
	TopP float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int

	// ThinkingBudget is the reasoning token budget for models that support
	// dedicated thinking phases. Zero disables the setting; providers that
	// cannot honour it ignore it.
	ThinkingBudget int
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// text.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// ThoughtTokens is the number of tokens spent on reasoning, for backends
	// that report it separately. Zero otherwise.
	ThoughtTokens int

	// TotalTokens is the provider-reported total.
	TotalTokens int
}

// Finish reasons reported on the terminal chunk and on CompletionResponse.
// Providers normalise their native values onto these.
const (
	// FinishStop is a natural end of generation.
	FinishStop = "stop"

	// FinishLength means the token limit was reached and output may be
	// truncated mid-record.
	FinishLength = "length"

	// FinishSafety means the backend's safety filter suppressed content.
	FinishSafety = "safety"

	// FinishError is set on a chunk emitted after a mid-stream failure; the
	// chunk Text carries the error message.
	FinishError = "error"
)

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content. May be empty on the terminal
	// chunk. Consumers must not assume chunk boundaries align with record
	// boundaries in the response grammar.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped. Empty on non-final chunks.
	FinishReason string
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// FinishReason records why generation stopped (see Finish constants).
	FinishReason string

	// SafetyBlocked is true when the backend reported that safety filtering
	// suppressed some or all of the content.
	SafetyBlocked bool

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any generative-language backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: when ctx is cancelled the method must return (or
// close its channel) as quickly as possible.
type Provider interface {
	// Name identifies the backend (e.g. "gemini", "openai") for logging and
	// metrics attributes.
	Name() string

	// Complete sends req to the model and waits for the full response.
	//
	// A response with no usable text content is an error: implementations
	// return an [*EmptyError] carrying whatever finish-reason, safety, and
	// usage metadata the backend exposed, so callers can explain the empty
	// completion instead of reporting a generic failure.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion sends req to the model and returns a read-only channel
	// emitting Chunk values as they arrive. The channel is closed by the
	// implementation when generation finishes or ctx is cancelled.
	//
	// Callers must drain the channel. Errors after the stream has started are
	// surfaced as a chunk with FinishReason [FinishError]; the error return is
	// non-nil only for failures that prevent the stream from starting.
	//
	// The returned channel must never be nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)
}

// EmptyError reports a completion that finished without usable content,
// together with whatever diagnostic metadata the backend exposed.
type EmptyError struct {
	// FinishReason is the normalised finish reason ("stop", "length",
	// "safety", or a provider-native value when none of those apply).
	FinishReason string

	// SafetyBlocked is true when safety filtering was reported as the cause.
	SafetyBlocked bool

	// Usage is the token accounting for the failed request, when available.
	Usage Usage
}

func (e *EmptyError) Error() string {
	return fmt.Sprintf("llm: empty completion (finish reason %q)", e.FinishReason)
}

// Explain returns a user-actionable description of why the completion was
// empty, distinguishing safety filtering, token truncation, and unexplained
// stops.
func (e *EmptyError) Explain() string {
	switch {
	case e.SafetyBlocked || e.FinishReason == FinishSafety:
		return "the model's safety filter blocked the response; try removing sensitive content from the transcript or simplifying the request"
	case e.FinishReason == FinishLength:
		return "the response was cut off by the token limit before any content was produced; reduce the transcript size, process fewer annotations at once, or lower the thinking budget"
	case e.FinishReason == FinishStop:
		return fmt.Sprintf("the model finished normally but produced no content (prompt %d tokens, thinking %d tokens); the prompt may be too complex or the annotation data malformed",
			e.Usage.PromptTokens, e.Usage.ThoughtTokens)
	default:
		return fmt.Sprintf("the model stopped unexpectedly (finish reason %q) without producing content", e.FinishReason)
	}
}
