package sqlengine_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/specs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/sqlengine"
	"github.com/AntonStoeckl/dynamic-readers-go/testutil/fixtures"
	"github.com/AntonStoeckl/dynamic-readers-go/testutil/spies"
)

func givenOwnedWidget(t *testing.T, env testEnv) {
	t.Helper()

	owner := fixtures.GivenOwner(t, env.db, "alice", nil)
	fixtures.GivenWidget(t, env.db, "w1", 1, nil, owner)
	fixtures.GivenWidget(t, env.db, "w2", 2, nil, owner)
}

func widgetWithOwnerPlan(t *testing.T, env testEnv) qs.QueryPlan {
	t.Helper()

	widget := env.registry.MustModel("widget")
	pair := specs.MustCompile(widget, specs.Spec{"name", map[string]any{"owner": specs.Spec{"name"}}})

	return pair.Prepare(qs.From(widget))
}

func Test_Observability_WithLogger_LogsStatementsAndCompletion(t *testing.T) {
	// setup
	env := newTestEnv(t)

	// arrange
	givenOwnedWidget(t, env)

	// act
	_, err := env.engine.Fetch(context.Background(), widgetWithOwnerPlan(t, env))

	// assert
	require.NoError(t, err)
	assert.True(t,
		env.logs.HasDebugLogWithMessage(sqlExecutedPrefix+"widget").
			WithDurationMS().
			WithAttrPresent("query").
			WithAttrPresent("fetch_id").
			Assert(), "should log the root statement with duration and query",
	)
	assert.True(t,
		env.logs.HasDebugLogWithMessage(sqlExecutedPrefix+"widget.owner").WithDurationMS().Assert(),
		"should log the prefetch statement with its relationship path",
	)
	assert.True(t,
		env.logs.HasInfoLogWithMessage("fetch completed").
			WithAttr("model", "widget").
			WithAttr("query_count", "2").
			WithAttr("instance_count", "2").
			WithDurationMS().
			Assert(), "should log fetch completion with counts",
	)
}

func Test_Observability_WithContextualLogger_ReceivesTheSameRecords(t *testing.T) {
	// setup
	contextual := spies.NewLogHandlerSpy(false)
	env := newTestEnv(t, sqlengine.WithContextualLogger(slog.New(contextual)))

	// arrange
	givenOwnedWidget(t, env)

	// act
	_, err := env.engine.Fetch(context.Background(), widgetWithOwnerPlan(t, env))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, contextual.CountWithPrefix(slog.LevelDebug, sqlExecutedPrefix))
	assert.True(t, contextual.HasInfoLogWithMessage("fetch completed").WithAttr("query_count", "2").Assert())
}

func Test_Observability_WithMetrics_RecordsFetchAndStatementMetrics(t *testing.T) {
	// setup
	metrics := spies.NewMetricsCollectorSpy()
	env := newTestEnv(t, sqlengine.WithMetrics(metrics))

	// arrange
	givenOwnedWidget(t, env)

	// act
	_, err := env.engine.Fetch(context.Background(), widgetWithOwnerPlan(t, env))

	// assert
	require.NoError(t, err)

	fetchDurations := metrics.DurationRecords("readers_fetch_duration_seconds")
	require.Len(t, fetchDurations, 1)
	assert.Equal(t, "success", fetchDurations[0].Labels["status"])
	assert.Equal(t, "fetch", fetchDurations[0].Labels["operation"])

	assert.Len(t, metrics.DurationRecords("readers_query_duration_seconds"), 2)

	queries := metrics.ValueRecords("readers_queries_per_fetch")
	require.Len(t, queries, 1)
	assert.Equal(t, float64(2), queries[0].Value)

	instances := metrics.ValueRecords("readers_instances_fetched")
	require.Len(t, instances, 1)
	assert.Equal(t, float64(2), instances[0].Value)

	assert.Empty(t, metrics.CounterRecords("readers_database_errors_total"))
}

func Test_Observability_WithMetrics_RecordsErrors(t *testing.T) {
	// setup
	metrics := spies.NewMetricsCollectorSpy()
	env := newTestEnv(t, sqlengine.WithMetrics(metrics))

	// act
	_, err := env.engine.Fetch(context.Background(), qs.From(env.registry.MustModel("widget")).Include("nope"))

	// assert
	require.Error(t, err)

	errors := metrics.CounterRecords("readers_database_errors_total")
	require.Len(t, errors, 1)
	assert.Equal(t, "build_statement", errors[0].Labels["error_type"])
	assert.Equal(t, "error", errors[0].Labels["status"])

	fetchDurations := metrics.DurationRecords("readers_fetch_duration_seconds")
	require.Len(t, fetchDurations, 1)
	assert.Equal(t, "error", fetchDurations[0].Labels["status"])
}

func Test_Observability_WithTracing_OpensOneSpanPerFetch(t *testing.T) {
	// setup
	tracing := spies.NewTracingCollectorSpy()
	env := newTestEnv(t, sqlengine.WithTracing(tracing))

	// arrange
	givenOwnedWidget(t, env)

	// act
	_, err := env.engine.Fetch(context.Background(), widgetWithOwnerPlan(t, env))

	// assert
	require.NoError(t, err)

	spans := tracing.SpanRecords()
	require.Len(t, spans, 1)
	assert.Equal(t, "readers.fetch", spans[0].Name)
	assert.True(t, spans[0].Finished)
	assert.Equal(t, "success", spans[0].Status)
	assert.Equal(t, "widget", spans[0].StartAttributes["model"])
	assert.Equal(t, "1", spans[0].StartAttributes["prefetch_count"])
	assert.NotEmpty(t, spans[0].StartAttributes["fetch_id"])
	assert.Equal(t, "2", spans[0].EndAttributes["query_count"])
	assert.Equal(t, "2", spans[0].EndAttributes["instance_count"])
	assert.Equal(t, "success", spans[0].SpanContext.Status())
	assert.Contains(t, spans[0].SpanContext.Attributes(), "duration_ms")
}

func Test_Observability_WithTracing_MarksFailedFetches(t *testing.T) {
	// setup
	tracing := spies.NewTracingCollectorSpy()
	env := newTestEnv(t, sqlengine.WithTracing(tracing))
	_, err := env.db.Exec("DROP TABLE widgets")
	require.NoError(t, err)

	// act
	_, err = env.engine.Fetch(context.Background(), qs.From(env.registry.MustModel("widget")))

	// assert
	require.Error(t, err)

	spans := tracing.SpanRecords()
	require.Len(t, spans, 1)
	assert.Equal(t, "error", spans[0].Status)
	assert.Equal(t, "database_query", spans[0].EndAttributes["error_type"])
	assert.Equal(t, "database_query", spans[0].SpanContext.Attributes()["error_type"])
}

func Test_Observability_FetchIDsAreUniquePerFetch(t *testing.T) {
	// setup
	tracing := spies.NewTracingCollectorSpy()
	env := newTestEnv(t, sqlengine.WithTracing(tracing))
	plan := qs.From(env.registry.MustModel("widget"))

	// act
	_, err := env.engine.Fetch(context.Background(), plan)
	require.NoError(t, err)
	_, err = env.engine.Fetch(context.Background(), plan)
	require.NoError(t, err)

	// assert
	spans := tracing.SpanRecords()
	require.Len(t, spans, 2)
	assert.NotEqual(t, spans[0].StartAttributes["fetch_id"], spans[1].StartAttributes["fetch_id"])
}
