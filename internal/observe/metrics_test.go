package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics builds a Metrics instance over a ManualReader so tests can
// collect and inspect recorded data.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// histogramCount returns the sample count of the named histogram's first
// data point.
func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("histogram %q not recorded", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatalf("histogram %q has no data", name)
	}
	return hist.DataPoints[0].Count
}

func TestMetrics_DurationHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionDuration.Record(ctx, 4.2)
	m.SessionDuration.Record(ctx, 0.8)
	m.ModelDuration.Record(ctx, 1.1)
	m.ModelDuration.Record(ctx, 2.2)
	m.ReconcileDuration.Record(ctx, 0.01)
	m.ReconcileDuration.Record(ctx, 0.02)

	rm := collect(t, reader)
	for _, name := range []string{
		"storymark.session.duration",
		"storymark.model.duration",
		"storymark.reconcile.duration",
	} {
		if got := histogramCount(t, rm, name); got != 2 {
			t.Errorf("%s sample count = %d, want 2", name, got)
		}
	}
}

func TestMetrics_Counters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordModelRequest(ctx, "gemini", "ok")
	m.RecordModelRequest(ctx, "gemini", "ok")
	m.RecordModelRequest(ctx, "gemini", "error")
	m.RecordModelError(ctx, "gemini")
	m.RecordRetry(ctx, "gemini")
	m.RecordOutcome(ctx, "notes", "applied")
	m.RecordOutcome(ctx, "notes", "applied")
	m.RecordOutcome(ctx, "notes", "skipped")
	m.RecordRejection(ctx, "identifier not found")

	rm := collect(t, reader)

	checks := []struct {
		metric, attrKey, attrVal string
		want                     int64
	}{
		{"storymark.model.requests", "status", "ok", 2},
		{"storymark.model.requests", "status", "error", 1},
		{"storymark.model.errors", "provider", "gemini", 1},
		{"storymark.session.retries", "provider", "gemini", 1},
		{"storymark.reconcile.outcomes", "disposition", "applied", 2},
		{"storymark.reconcile.outcomes", "disposition", "skipped", 1},
		{"storymark.parse.rejections", "reason", "identifier not found", 1},
	}
	for _, c := range checks {
		if got := counterValue(t, rm, c.metric, c.attrKey, c.attrVal); got != c.want {
			t.Errorf("%s{%s=%s} = %d, want %d", c.metric, c.attrKey, c.attrVal, got, c.want)
		}
	}
}

func TestMetrics_ActiveSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "storymark.active_sessions")
	if met == nil {
		t.Fatal("gauge not recorded")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("gauge has no data")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different pointers across calls")
	}
}
