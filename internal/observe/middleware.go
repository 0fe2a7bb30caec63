package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kverner/storymark/pkg/llm"
)

// instrumentedProvider wraps an [llm.Provider], recording a span, call
// latency, and request/error counters around every model call.
type instrumentedProvider struct {
	inner   llm.Provider
	metrics *Metrics
}

// InstrumentProvider wraps p so every Complete and StreamCompletion call is
// traced and measured. A nil metrics falls back to [DefaultMetrics].
func InstrumentProvider(p llm.Provider, m *Metrics) llm.Provider {
	if m == nil {
		m = DefaultMetrics()
	}
	return &instrumentedProvider{inner: p, metrics: m}
}

func (p *instrumentedProvider) Name() string { return p.inner.Name() }

func (p *instrumentedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, span := StartSpan(ctx, "llm.Complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider", p.inner.Name())),
	)
	defer span.End()

	start := time.Now()
	resp, err := p.inner.Complete(ctx, req)
	p.record(ctx, span, time.Since(start), err)
	return resp, err
}

func (p *instrumentedProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ctx, span := StartSpan(ctx, "llm.StreamCompletion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider", p.inner.Name())),
	)

	start := time.Now()
	inner, err := p.inner.StreamCompletion(ctx, req)
	if err != nil {
		p.record(ctx, span, time.Since(start), err)
		span.End()
		return nil, err
	}

	// The span covers the full stream, so it ends when the channel closes.
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		var streamErr error
		for chunk := range inner {
			if chunk.FinishReason == llm.FinishError {
				streamErr = errStream
			}
			out <- chunk
		}
		p.record(ctx, span, time.Since(start), streamErr)
		span.End()
	}()
	return out, nil
}

// errStream marks a mid-stream failure surfaced as a FinishError chunk.
var errStream = errStreamType{}

type errStreamType struct{}

func (errStreamType) Error() string { return "stream error chunk" }

func (p *instrumentedProvider) record(ctx context.Context, span trace.Span, d time.Duration, err error) {
	p.metrics.ModelDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("provider", p.inner.Name())),
	)
	status := "ok"
	if err != nil {
		status = "error"
		p.metrics.RecordModelError(ctx, p.inner.Name())
		span.SetStatus(codes.Error, err.Error())
	}
	p.metrics.RecordModelRequest(ctx, p.inner.Name(), status)
}
