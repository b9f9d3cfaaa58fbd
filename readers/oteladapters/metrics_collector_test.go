package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/dynamic-readers-go/readers/oteladapters"
)

func newMetricsCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	for _, scope := range resourceMetrics.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}

	require.Failf(t, "metric not found", "metric %q was not collected", name)

	return nil
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// setup
	collector, reader := newMetricsCollector()

	// act
	collector.RecordDuration("readers_fetch_duration_seconds", 150*time.Millisecond, map[string]string{"status": "success"})
	collector.RecordDurationContext(context.Background(), "readers_fetch_duration_seconds", 50*time.Millisecond, map[string]string{"status": "success"})

	// assert
	histogram, ok := collect(t, reader, "readers_fetch_duration_seconds").(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.2, histogram.DataPoints[0].Sum, 0.001)

	status, found := histogram.DataPoints[0].Attributes.Value(attribute.Key("status"))
	require.True(t, found)
	assert.Equal(t, "success", status.AsString())
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// setup
	collector, reader := newMetricsCollector()
	labels := map[string]string{"operation": "fetch", "error_type": "row_scan"}

	// act
	collector.IncrementCounter("readers_database_errors_total", labels)
	collector.IncrementCounterContext(context.Background(), "readers_database_errors_total", labels)

	// assert
	sum, ok := collect(t, reader, "readers_database_errors_total").(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// setup
	collector, reader := newMetricsCollector()

	// act
	collector.RecordValue("readers_queries_per_fetch", 2, map[string]string{"operation": "fetch"})
	collector.RecordValueContext(context.Background(), "readers_queries_per_fetch", 3, map[string]string{"operation": "fetch"})

	// assert
	gauge, ok := collect(t, reader, "readers_queries_per_fetch").(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, float64(3), gauge.DataPoints[0].Value)
}

func Test_MetricsCollector_SeparatesLabelSets(t *testing.T) {
	// setup
	collector, reader := newMetricsCollector()

	// act
	collector.IncrementCounter("readers_database_errors_total", map[string]string{"error_type": "row_scan"})
	collector.IncrementCounter("readers_database_errors_total", map[string]string{"error_type": "database_query"})

	// assert
	sum, ok := collect(t, reader, "readers_database_errors_total").(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2)
}
