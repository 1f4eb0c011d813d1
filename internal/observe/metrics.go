// Package observe provides observability primitives for mnemo: OpenTelemetry
// metrics with a Prometheus exporter bridge, and structured logging setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// wires a Prometheus exporter so they can be scraped via the standard
// /metrics endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all mnemo metrics.
const meterName = "github.com/mnemo-app/mnemo"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// EmbedDuration tracks embedding computation latency per text.
	EmbedDuration metric.Float64Histogram

	// ChatDuration tracks chat completion latency.
	ChatDuration metric.Float64Histogram

	// SearchDuration tracks end-to-end semantic search latency.
	SearchDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ToolCalls counts MCP tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// BackfillProcessed counts memories processed by backfill rounds. Use
	// with attribute: attribute.String("status", "embedded"|"skipped")
	BackfillProcessed metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote model calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EmbedDuration, err = m.Float64Histogram("mnemo.embed.duration",
		metric.WithDescription("Latency of embedding computation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChatDuration, err = m.Float64Histogram("mnemo.chat.duration",
		metric.WithDescription("Latency of chat completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("mnemo.search.duration",
		metric.WithDescription("End-to-end semantic search latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("mnemo.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("mnemo.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("mnemo.tool.calls",
		metric.WithDescription("Total MCP tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.BackfillProcessed, err = m.Int64Counter("mnemo.backfill.processed",
		metric.WithDescription("Memories processed by embedding backfill, by status."),
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

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordToolCall records a tool call counter increment with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordBackfill records backfill progress by outcome status.
func (m *Metrics) RecordBackfill(ctx context.Context, status string, n int64) {
	m.BackfillProcessed.Add(ctx, n,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
