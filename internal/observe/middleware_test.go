package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kverner/storymark/pkg/llm"
	"github.com/kverner/storymark/pkg/llm/mock"
)

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, attrKey, attrVal string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		return 0
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == attrKey && kv.Value.AsString() == attrVal {
				return dp.Value
			}
		}
	}
	return 0
}

func TestInstrumentProvider_CompleteSuccess(t *testing.T) {
	m, reader := newTestMetrics(t)
	inner := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content:      "result",
		FinishReason: llm.FinishStop,
	}}

	p := InstrumentProvider(inner, m)
	if p.Name() != "mock" {
		t.Errorf("Name() = %q, want the wrapped provider's name", p.Name())
	}

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "result" {
		t.Errorf("Content = %q", resp.Content)
	}

	rm := collect(t, reader)
	if got := counterValue(t, rm, "storymark.model.requests", "status", "ok"); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}

	met := findMetric(rm, "storymark.model.duration")
	if met == nil {
		t.Fatal("duration histogram not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
		t.Error("duration histogram missing the call sample")
	}
}

func TestInstrumentProvider_CompleteError(t *testing.T) {
	m, reader := newTestMetrics(t)
	inner := &mock.Provider{CompleteErr: errors.New("boom")}

	p := InstrumentProvider(inner, m)
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error from wrapped provider")
	}

	rm := collect(t, reader)
	if got := counterValue(t, rm, "storymark.model.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
	if got := counterValue(t, rm, "storymark.model.errors", "provider", "mock"); got != 1 {
		t.Errorf("model errors = %d, want 1", got)
	}
}

func TestInstrumentProvider_StreamPassthrough(t *testing.T) {
	m, reader := newTestMetrics(t)
	inner := &mock.Provider{StreamChunks: []llm.Chunk{
		{Text: "a"},
		{Text: "b", FinishReason: llm.FinishStop},
	}}

	p := InstrumentProvider(inner, m)
	ch, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}

	var text string
	for c := range ch {
		text += c.Text
	}
	if text != "ab" {
		t.Errorf("streamed %q, want %q", text, "ab")
	}

	rm := collect(t, reader)
	if got := counterValue(t, rm, "storymark.model.requests", "status", "ok"); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}
}

func TestInstrumentProvider_StreamErrorChunk(t *testing.T) {
	m, reader := newTestMetrics(t)
	inner := &mock.Provider{StreamChunks: []llm.Chunk{
		{Text: "partial"},
		{Text: "connection reset", FinishReason: llm.FinishError},
	}}

	p := InstrumentProvider(inner, m)
	ch, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	for range ch {
	}

	rm := collect(t, reader)
	if got := counterValue(t, rm, "storymark.model.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
}

func TestInstrumentProvider_StreamStartError(t *testing.T) {
	m, reader := newTestMetrics(t)
	inner := &mock.Provider{StreamErr: errors.New("dial failed")}

	p := InstrumentProvider(inner, m)
	if _, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error from wrapped provider")
	}

	rm := collect(t, reader)
	if got := counterValue(t, rm, "storymark.model.errors", "provider", "mock"); got != 1 {
		t.Errorf("model errors = %d, want 1", got)
	}
}
