package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
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

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestSearchDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SearchDuration.Record(ctx, 0.42)
	m.SearchDuration.Record(ctx, 1.5)

	rm := collect(t, reader)
	metric := findMetric(rm, "mnemo.search.duration")
	if metric == nil {
		t.Fatal("mnemo.search.duration not found")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("want Histogram[float64], got %T", metric.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Errorf("want one data point with 2 observations, got %+v", hist.DataPoints)
	}
}

func TestProviderCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "openai", "embed", "ok")
	m.RecordProviderRequest(ctx, "openai", "embed", "ok")
	m.RecordProviderError(ctx, "ollama", "chat")

	rm := collect(t, reader)

	requests := findMetric(rm, "mnemo.provider.requests")
	if requests == nil {
		t.Fatal("mnemo.provider.requests not found")
	}
	sum, ok := requests.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("want Sum[int64], got %T", requests.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Errorf("requests: got %+v", sum.DataPoints)
	}

	if findMetric(rm, "mnemo.provider.errors") == nil {
		t.Error("mnemo.provider.errors not found")
	}
}

func TestBackfillCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBackfill(ctx, "embedded", 25)
	m.RecordBackfill(ctx, "skipped", 2)

	rm := collect(t, reader)
	metric := findMetric(rm, "mnemo.backfill.processed")
	if metric == nil {
		t.Fatal("mnemo.backfill.processed not found")
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("want Sum[int64], got %T", metric.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 27 {
		t.Errorf("backfill total: want 27, got %d", total)
	}
}
