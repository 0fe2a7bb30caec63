// Package observe provides application-wide observability primitives for
// storymark: OpenTelemetry metrics, tracing, and an instrumented model
// provider wrapper.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all storymark metrics.
const meterName = "github.com/kverner/storymark"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// SessionDuration tracks wall-clock time of a full generation session,
	// retries included.
	SessionDuration metric.Float64Histogram

	// ModelDuration tracks latency of individual model calls.
	ModelDuration metric.Float64Histogram

	// ReconcileDuration tracks how long merging parsed records into the
	// collection takes.
	ReconcileDuration metric.Float64Histogram

	// ModelRequests counts model API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ModelRequests metric.Int64Counter

	// ModelErrors counts model call failures. Use with attribute:
	//   attribute.String("provider", ...)
	ModelErrors metric.Int64Counter

	// Retries counts retry attempts after transient model failures.
	Retries metric.Int64Counter

	// RecordOutcomes counts reconciliation outcomes. Use with attributes:
	//   attribute.String("grammar", ...), attribute.String("disposition", ...)
	RecordOutcomes metric.Int64Counter

	// Rejections counts response records rejected during parsing. Use with
	// attribute: attribute.String("reason", ...)
	Rejections metric.Int64Counter

	// ActiveSessions tracks the number of in-flight generation sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// model inference, which routinely runs tens of seconds on large transcripts.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SessionDuration, err = m.Float64Histogram("storymark.session.duration",
		metric.WithDescription("Wall-clock duration of a full generation session, retries included."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelDuration, err = m.Float64Histogram("storymark.model.duration",
		metric.WithDescription("Latency of individual model calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReconcileDuration, err = m.Float64Histogram("storymark.reconcile.duration",
		metric.WithDescription("Duration of merging parsed records into the collection."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ModelRequests, err = m.Int64Counter("storymark.model.requests",
		metric.WithDescription("Total model API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ModelErrors, err = m.Int64Counter("storymark.model.errors",
		metric.WithDescription("Total model call failures by provider."),
	); err != nil {
		return nil, err
	}
	if met.Retries, err = m.Int64Counter("storymark.session.retries",
		metric.WithDescription("Total retry attempts after transient model failures."),
	); err != nil {
		return nil, err
	}
	if met.RecordOutcomes, err = m.Int64Counter("storymark.reconcile.outcomes",
		metric.WithDescription("Total reconciliation outcomes by grammar and disposition."),
	); err != nil {
		return nil, err
	}
	if met.Rejections, err = m.Int64Counter("storymark.parse.rejections",
		metric.WithDescription("Total response records rejected during parsing, by reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("storymark.active_sessions",
		metric.WithDescription("Number of in-flight generation sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordModelRequest records a model request counter increment with the
// standard attribute set.
func (m *Metrics) RecordModelRequest(ctx context.Context, provider, status string) {
	m.ModelRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordModelError records a model error counter increment.
func (m *Metrics) RecordModelError(ctx context.Context, provider string) {
	m.ModelErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordRetry records a retry counter increment.
func (m *Metrics) RecordRetry(ctx context.Context, provider string) {
	m.Retries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordOutcome records a reconciliation outcome counter increment.
func (m *Metrics) RecordOutcome(ctx context.Context, grammar, disposition string) {
	m.RecordOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("grammar", grammar),
			attribute.String("disposition", disposition),
		),
	)
}

// RecordRejection records a parse rejection counter increment.
func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	m.Rejections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
