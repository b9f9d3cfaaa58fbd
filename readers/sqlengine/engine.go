package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/sqlengine/internal/adapters"
)

const (
	// DialectPostgres renders statements for PostgreSQL. This is the default.
	DialectPostgres = "postgres"

	// DialectSQLite renders statements for SQLite.
	DialectSQLite = "sqlite3"
)

// Engine executes prepared query plans with one statement per relationship level and
// returns the fetched instances with every declared prefetch attached.
type Engine struct {
	db               adapters.DBAdapter
	dialectName      string
	dialect          goqu.DialectWrapper
	maxInClause      int
	logger           readers.Logger
	contextualLogger readers.ContextualLogger
	metricsCollector readers.MetricsCollector
	tracingCollector readers.TracingCollector
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithDialect selects the SQL dialect statements are rendered in.
func WithDialect(name string) Option {
	return func(e *Engine) error {
		switch name {
		case DialectPostgres, DialectSQLite:
			e.dialectName = name
			e.dialect = goqu.Dialect(name)
			return nil
		default:
			return fmt.Errorf("%w: %q", readers.ErrUnsupportedDialect, name)
		}
	}
}

// WithMaxInClause splits the key list of a prefetch into batches of at most n keys.
// Each batch is one statement. Zero, the default, never splits.
func WithMaxInClause(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return fmt.Errorf("max IN clause size must not be negative, got %d", n)
		}

		e.maxInClause = n

		return nil
	}
}

// WithLogger sets the logger for the Engine.
//
// Debug level: every executed SQL statement with its duration
// Info level: completed fetches with statement and instance counts
// Error level: failures that abort a fetch.
func WithLogger(logger readers.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, which receives the same records as WithLogger.
func WithContextualLogger(logger readers.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector readers.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine. One span is opened per fetch.
func WithTracing(collector readers.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}

func newEngine(db adapters.DBAdapter, options []Option) (Engine, error) {
	e := Engine{
		db:          db,
		dialectName: DialectPostgres,
		dialect:     goqu.Dialect(DialectPostgres),
	}

	for _, option := range options {
		if err := option(&e); err != nil {
			return Engine{}, err
		}
	}

	return e, nil
}

// NewEngineFromPGXPool creates an Engine using a pgx Pool.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, readers.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options)
}

// NewEngineFromPGXPoolWithReplica creates an Engine that reads from replica when the context
// carries readers.WithEventualConsistency.
func NewEngineFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Engine, error) {
	if db == nil || replica == nil {
		return Engine{}, readers.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapterWithReplica(db, replica), options)
}

// NewEngineFromSQLDB creates an Engine using a sql.DB.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, readers.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options)
}

// NewEngineFromSQLDBWithReplica creates an Engine using a sql.DB primary and a sql.DB replica.
func NewEngineFromSQLDBWithReplica(db *sql.DB, replica *sql.DB, options ...Option) (Engine, error) {
	if db == nil || replica == nil {
		return Engine{}, readers.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapterWithReplica(db, replica), options)
}

// NewEngineFromSQLX creates an Engine using a sqlx.DB.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, readers.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options)
}

// NewEngineFromSQLXWithReplica creates an Engine using a sqlx.DB primary and a sqlx.DB replica.
func NewEngineFromSQLXWithReplica(db *sqlx.DB, replica *sqlx.DB, options ...Option) (Engine, error) {
	if db == nil || replica == nil {
		return Engine{}, readers.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapterWithReplica(db, replica), options)
}

// Dialect returns the name of the configured SQL dialect.
func (e Engine) Dialect() string {
	return e.dialectName
}

// Fetch executes plan and every prefetch it declares. The number of statements is bounded by
// the number of prefetch declarations plus one, independent of the number of rows.
func (e Engine) Fetch(ctx context.Context, plan qs.QueryPlan) ([]*readers.Instance, error) {
	run := &fetchRun{engine: e, fetchID: newFetchID()}

	tracer, ctx := e.startFetchTracing(ctx, plan, run.fetchID)
	metrics := e.startFetchMetrics(ctx)
	start := time.Now()

	instances, err := run.fetchRoot(ctx, plan)
	duration := time.Since(start)

	if err != nil {
		errorType := classifyError(err)
		tracer.finishError(errorType, duration)
		metrics.recordError(errorType, duration)

		return nil, err
	}

	tracer.finishSuccess(len(instances), run.queries, duration)
	metrics.recordSuccess(len(instances), run.queries, duration)
	e.logFetchCompleted(ctx, plan, run, len(instances), duration)

	return instances, nil
}

// First fetches the first instance of plan, honouring its offset. It fails with readers.ErrNotFound when there is none.
func (e Engine) First(ctx context.Context, plan qs.QueryPlan) (*readers.Instance, error) {
	bounds, _ := plan.Bounds()

	instances, err := e.Fetch(ctx, plan.Bound(bounds.Offset, 1))
	if err != nil {
		return nil, err
	}

	if len(instances) == 0 {
		return nil, readers.ErrNotFound
	}

	return instances[0], nil
}

// Get fetches exactly one instance. It fails with readers.ErrNotFound or readers.ErrMultipleFound otherwise.
func (e Engine) Get(ctx context.Context, plan qs.QueryPlan) (*readers.Instance, error) {
	bounds, _ := plan.Bounds()

	instances, err := e.Fetch(ctx, plan.Bound(bounds.Offset, 2))
	if err != nil {
		return nil, err
	}

	switch len(instances) {
	case 0:
		return nil, readers.ErrNotFound
	case 1:
		return instances[0], nil
	default:
		return nil, readers.ErrMultipleFound
	}
}

// SQL renders the root statement of plan without executing it.
func (e Engine) SQL(plan qs.QueryPlan) (string, error) {
	if err := validatePlan(plan); err != nil {
		return "", err
	}

	stmt, err := e.buildStatement(plan, nil)
	if err != nil {
		return "", err
	}

	return stmt.sql, nil
}

func newFetchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func validatePlan(plan qs.QueryPlan) error {
	if plan.Model() == nil {
		return errors.Join(readers.ErrBuildingQueryFailed, readers.ErrUnknownModel)
	}

	var errs []error
	if err := plan.Err(); err != nil {
		errs = append(errs, err)
	}

	for _, prefetch := range plan.Prefetches() {
		if err := validatePlan(prefetch.Plan); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(append([]error{readers.ErrBuildingQueryFailed}, errs...)...)
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, readers.ErrQueryingFailed):
		return errorTypeDatabaseQuery
	case errors.Is(err, readers.ErrScanningDBRowFailed):
		return errorTypeRowScan
	case errors.Is(err, readers.ErrStitchingFailed):
		return errorTypeStitching
	default:
		return errorTypeBuildStatement
	}
}
