package cli

import (
	"context"
	"fmt"
	"io"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/dynamic-readers-go/readers/oteladapters"
)

// statsCollector records engine metrics in memory for --stats.
type statsCollector struct {
	reader    *sdkmetric.ManualReader
	collector *oteladapters.MetricsCollector
}

func newStatsCollector() *statsCollector {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return &statsCollector{
		reader:    reader,
		collector: oteladapters.NewMetricsCollector(provider.Meter("readers-cli")),
	}
}

func (s *statsCollector) write(ctx context.Context, w io.Writer) error {
	var resourceMetrics metricdata.ResourceMetrics
	if err := s.reader.Collect(ctx, &resourceMetrics); err != nil {
		return err
	}

	for _, scope := range resourceMetrics.ScopeMetrics {
		for _, m := range scope.Metrics {
			for _, line := range metricLines(m) {
				if _, err := fmt.Fprintln(w, line); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func metricLines(m metricdata.Metrics) []string {
	var lines []string

	switch data := m.Data.(type) {
	case metricdata.Gauge[float64]:
		for _, point := range data.DataPoints {
			lines = append(lines, fmt.Sprintf("%s %g", m.Name, point.Value))
		}
	case metricdata.Sum[int64]:
		for _, point := range data.DataPoints {
			lines = append(lines, fmt.Sprintf("%s %d", m.Name, point.Value))
		}
	case metricdata.Histogram[float64]:
		for _, point := range data.DataPoints {
			lines = append(lines, fmt.Sprintf("%s count=%d sum=%.6fs", m.Name, point.Count, point.Sum))
		}
	}

	return lines
}
