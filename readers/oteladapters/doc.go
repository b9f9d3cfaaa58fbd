// Package oteladapters implements the observability interfaces of the readers package with OpenTelemetry.
//
// Plug them into the engine to get fetch spans, metrics and trace-correlated logs:
//
//	engine, _ := sqlengine.NewEngineFromPGXPool(
//		db,
//		sqlengine.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("readers"))),
//		sqlengine.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("readers"))),
//		sqlengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger("readers")),
//	)
package oteladapters
