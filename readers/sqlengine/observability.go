package sqlengine

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
)

const (
	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgStitchingFailed        = "failed to attach prefetched instances"
	logMsgFetchCompleted         = "fetch completed"
	logMsgSQLExecuted            = "executed sql for: "
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrDurationMS            = "duration_ms"
	logAttrFetchID               = "fetch_id"
	logAttrModel                 = "model"
	logAttrPath                  = "path"
	logAttrQueryCount            = "query_count"
	logAttrInstanceCount         = "instance_count"
)

const (
	metricFetchDuration    = "readers_fetch_duration_seconds"
	metricQueryDuration    = "readers_query_duration_seconds"
	metricInstancesFetched = "readers_instances_fetched"
	metricQueriesPerFetch  = "readers_queries_per_fetch"
	metricDatabaseErrors   = "readers_database_errors_total"

	spanNameFetch          = "readers.fetch"
	spanAttrOperation      = "operation"
	spanAttrModel          = "model"
	spanAttrFetchID        = "fetch_id"
	spanAttrPrefetchCount  = "prefetch_count"
	spanAttrInstanceCount  = "instance_count"
	spanAttrQueryCount     = "query_count"
	spanAttrErrorType      = "error_type"
	spanAttrDurationMS     = "duration_ms"
	labelStatus            = "status"
	statusSuccess          = "success"
	statusError            = "error"
	operationFetch         = "fetch"
	operationQuery         = "query"
	errorTypeBuildStatement = "build_statement"
	errorTypeDatabaseQuery  = "database_query"
	errorTypeRowScan        = "row_scan"
	errorTypeStitching      = "stitching"
)

func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return strconv.FormatFloat(toMilliseconds(d), 'f', 2, 64)
}

/***** Logging *****/

// logQueryWithDuration logs one executed statement at debug level.
func (e Engine) logQueryWithDuration(ctx context.Context, sqlQuery, label, fetchID string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery, logAttrFetchID, fetchID}

	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+label, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+label, args...)
	}
}

func (e Engine) logFetchCompleted(ctx context.Context, plan qs.QueryPlan, run *fetchRun, instanceCount int, duration time.Duration) {
	args := []any{
		logAttrModel, plan.Model().Name(),
		logAttrFetchID, run.fetchID,
		logAttrQueryCount, run.queries,
		logAttrInstanceCount, instanceCount,
		logAttrDurationMS, toMilliseconds(duration),
	}

	if e.logger != nil {
		e.logger.Info(logMsgFetchCompleted, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, logMsgFetchCompleted, args...)
	}
}

func (e Engine) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if e.logger != nil {
		e.logger.Error(message, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

func (e Engine) logWarn(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if e.logger != nil {
		e.logger.Warn(message, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, message, allArgs...)
	}
}

/***** Metrics *****/

func (e Engine) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(readers.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	e.metricsCollector.RecordDuration(metric, duration, labels)
}

func (e Engine) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(readers.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	e.metricsCollector.RecordValue(metric, value, labels)
}

func (e Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(readers.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	e.metricsCollector.IncrementCounter(metric, labels)
}

func (e Engine) recordQueryDuration(ctx context.Context, duration time.Duration) {
	e.recordDuration(ctx, metricQueryDuration, duration, map[string]string{
		spanAttrOperation: operationQuery,
		labelStatus:       statusSuccess,
	})
}

func (e Engine) recordQueryError(ctx context.Context, errorType string) {
	e.incrementCounter(ctx, metricDatabaseErrors, map[string]string{
		spanAttrOperation: operationQuery,
		labelStatus:       statusError,
		spanAttrErrorType: errorType,
	})
}

// fetchMetricsObserver records the metrics of one Fetch call.
type fetchMetricsObserver struct {
	engine Engine
	ctx    context.Context
}

func (e Engine) startFetchMetrics(ctx context.Context) *fetchMetricsObserver {
	return &fetchMetricsObserver{engine: e, ctx: ctx}
}

func (o *fetchMetricsObserver) recordSuccess(instanceCount, queryCount int, duration time.Duration) {
	labels := map[string]string{spanAttrOperation: operationFetch, labelStatus: statusSuccess}

	o.engine.recordDuration(o.ctx, metricFetchDuration, duration, labels)
	o.engine.recordValue(o.ctx, metricInstancesFetched, float64(instanceCount), labels)
	o.engine.recordValue(o.ctx, metricQueriesPerFetch, float64(queryCount), labels)
}

func (o *fetchMetricsObserver) recordError(errorType string, duration time.Duration) {
	o.engine.recordDuration(o.ctx, metricFetchDuration, duration, map[string]string{
		spanAttrOperation: operationFetch,
		labelStatus:       statusError,
	})

	o.engine.incrementCounter(o.ctx, metricDatabaseErrors, map[string]string{
		spanAttrOperation: operationFetch,
		labelStatus:       statusError,
		spanAttrErrorType: errorType,
	})
}

/***** Tracing *****/

// fetchTracingObserver owns the span of one Fetch call. All methods are no-ops without a tracing collector.
type fetchTracingObserver struct {
	engine Engine
	span   readers.SpanContext
}

func (e Engine) startFetchTracing(ctx context.Context, plan qs.QueryPlan, fetchID string) (*fetchTracingObserver, context.Context) {
	observer := &fetchTracingObserver{engine: e}
	if e.tracingCollector == nil {
		return observer, ctx
	}

	attrs := map[string]string{
		spanAttrOperation:     operationFetch,
		spanAttrFetchID:       fetchID,
		spanAttrPrefetchCount: strconv.Itoa(countPrefetches(plan)),
	}

	if plan.Model() != nil {
		attrs[spanAttrModel] = plan.Model().Name()
	}

	ctx, observer.span = e.tracingCollector.StartSpan(ctx, spanNameFetch, attrs)

	return observer, ctx
}

func (o *fetchTracingObserver) finishSuccess(instanceCount, queryCount int, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusSuccess)
	o.span.AddAttribute(spanAttrDurationMS, formatMilliseconds(duration))

	o.engine.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
		spanAttrInstanceCount: strconv.Itoa(instanceCount),
		spanAttrQueryCount:    strconv.Itoa(queryCount),
	})
}

func (o *fetchTracingObserver) finishError(errorType string, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusError)
	o.span.AddAttribute(spanAttrErrorType, errorType)
	o.span.AddAttribute(spanAttrDurationMS, formatMilliseconds(duration))

	o.engine.tracingCollector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorType})
}

func countPrefetches(plan qs.QueryPlan) int {
	count := 0
	for _, prefetch := range plan.Prefetches() {
		count += 1 + countPrefetches(prefetch.Plan)
	}

	return count
}
