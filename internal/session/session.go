// Package session orchestrates one model request/response cycle end-to-end:
// build prompt, invoke the provider with retry, accumulate streamed output,
// parse, and reconcile on explicit confirmation.
//
// A Session is the single-request unit with an explicit state machine and a
// cooperative stop signal. The Orchestrator above it owns the full pipeline
// for one annotation store and guards reconciliation so two sessions can
// never merge into the same collection concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kverner/storymark/internal/observe"
	"github.com/kverner/storymark/pkg/llm"
)

// State is the lifecycle position of a session.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateRetrying
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrRetryExhausted signals that every attempt in the retry budget failed
// with a retryable error. It is distinct from a plain failure so the caller
// can offer an explicit retry affordance.
var ErrRetryExhausted = errors.New("session: retry budget exhausted")

// ErrCancelled signals a cooperative stop.
var ErrCancelled = errors.New("session: cancelled")

// retryableFragments identifies transient failures by substring match on the
// error message, case-insensitive.
var retryableFragments = []string{
	"500 internal",
	"internal server error",
	"service unavailable",
	"timeout",
	"connection error",
	"network error",
	"temporarily unavailable",
}

// IsRetryable reports whether err looks like a transient service failure
// worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Default retry parameters.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 2 * time.Second
)

// Config configures a [Session].
type Config struct {
	// Provider performs the model call.
	Provider llm.Provider

	// MaxRetries is the number of retries after the first attempt.
	// Defaults to 2 (3 attempts total) if zero; set negative to disable.
	MaxRetries int

	// BaseDelay is the backoff before the first retry, doubling per
	// attempt. Defaults to 2s if zero.
	BaseDelay time.Duration

	// OnChunk receives streamed text fragments in order, before the
	// terminal event. Chunk boundaries carry no meaning; a record's
	// delimiters may straddle two chunks, so parsing only runs on the
	// accumulated whole. When nil, the session uses the provider's
	// non-streaming call.
	OnChunk func(text string)

	// OnState observes state transitions. May be nil.
	OnState func(State)

	// Metrics receives retry telemetry. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Session owns one outstanding model request. A Session is single-use:
// Run may be called once.
type Session struct {
	provider   llm.Provider
	maxRetries int
	baseDelay  time.Duration
	onChunk    func(string)
	onState    func(State)
	metrics    *observe.Metrics
	log        *slog.Logger

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates a Session from cfg.
func New(cfg Config) *Session {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	} else if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Session{
		provider:   cfg.Provider,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		onChunk:    cfg.OnChunk,
		onState:    cfg.OnState,
		metrics:    metrics,
		log:        log,
		state:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop cancels the in-flight request. Stopping a completed session is a
// no-op. Safe to call multiple times and from any goroutine.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		terminal := s.state == StateSucceeded || s.state == StateFailed
		if !terminal {
			s.setStateLocked(StateCancelled)
		}
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.setStateLocked(state)
	s.mu.Unlock()
}

// setStateLocked requires s.mu held. Cancelled is sticky: a stopped session
// never transitions again.
func (s *Session) setStateLocked(state State) {
	if s.state == StateCancelled {
		return
	}
	s.state = state
	if s.onState != nil {
		s.onState(state)
	}
}

// Run sends the request and returns the accumulated response text. Transient
// failures are retried with exponential backoff up to the configured budget;
// exhaustion surfaces as [ErrRetryExhausted] wrapping the last error. An
// empty completion surfaces as a [*llm.EmptyError] carrying whatever
// diagnostic metadata the provider exposed.
func (s *Session) Run(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("session: run from state %v", state)
	}
	s.cancel = cancel
	s.setStateLocked(StateSending)
	s.mu.Unlock()

	delay := s.baseDelay
	attempts := s.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(ErrCancelled)
		}

		resp, err := s.attempt(ctx, req)
		if err == nil {
			s.setState(StateSucceeded)
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || s.State() == StateCancelled {
			return nil, s.fail(ErrCancelled)
		}
		if !IsRetryable(err) {
			return nil, s.fail(err)
		}
		if attempt == attempts {
			break
		}

		s.log.Warn("model call failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"backoff", delay,
			"error", err,
		)
		s.setState(StateRetrying)
		s.metrics.RecordRetry(ctx, s.provider.Name())

		select {
		case <-ctx.Done():
			return nil, s.fail(ErrCancelled)
		case <-time.After(delay):
		}
		delay *= 2

		s.setState(StateSending)
	}

	s.log.Error("retry budget exhausted", "attempts", attempts, "error", lastErr)
	return nil, s.fail(fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr))
}

func (s *Session) fail(err error) error {
	if errors.Is(err, ErrCancelled) {
		s.setState(StateCancelled)
	} else {
		s.setState(StateFailed)
	}
	return err
}

// attempt performs a single model call, streaming when a chunk consumer is
// configured.
func (s *Session) attempt(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.onChunk == nil {
		resp, err := s.provider.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		// Providers report safety blocks and truncated generations as a
		// successful call with no content; surface those the same way the
		// streaming path does.
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			emptyErr := &llm.EmptyError{FinishReason: llm.FinishStop}
			if resp != nil {
				if resp.FinishReason != "" {
					emptyErr.FinishReason = resp.FinishReason
				}
				emptyErr.SafetyBlocked = resp.SafetyBlocked || resp.FinishReason == llm.FinishSafety
				emptyErr.Usage = resp.Usage
			}
			return nil, emptyErr
		}
		return resp, nil
	}

	chunks, err := s.provider.StreamCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	s.setState(StateStreaming)

	var sb strings.Builder
	finish := llm.FinishStop
	for chunk := range chunks {
		if chunk.FinishReason == llm.FinishError {
			return nil, fmt.Errorf("session: stream failed: %s", chunk.Text)
		}
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			if s.State() == StateCancelled {
				return nil, ErrCancelled
			}
			s.onChunk(chunk.Text)
		}
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return nil, &llm.EmptyError{
			FinishReason:  finish,
			SafetyBlocked: finish == llm.FinishSafety,
		}
	}
	return &llm.CompletionResponse{Content: content, FinishReason: finish}, nil
}
