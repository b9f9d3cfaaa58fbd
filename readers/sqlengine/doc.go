// Package sqlengine executes query plans against PostgreSQL or SQLite.
//
// A fetch runs one statement for the root plan and one statement per prefetch declaration,
// regardless of how many rows each level returns. Related rows are matched to their parents
// by key and attached to the parent instances, so projecting the result never touches the
// database again. Bounded prefetches are limited per parent with a ROW_NUMBER window.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - PostgreSQL and SQLite dialects
//   - Optional read replica selected per fetch via readers.WithEventualConsistency
//   - Logging, metrics and tracing through the interfaces of the readers package
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	engine, _ := sqlengine.NewEngineFromPGXPool(db, sqlengine.WithLogger(logger))
//
//	pair := specs.MustCompile(widget, specs.Spec{"name", map[string]any{"owner": specs.Spec{"name"}}})
//	instances, _ := engine.Fetch(ctx, pair.Prepare(qs.From(widget)))
//
//	// SQLite through database/sql
//	engine, _ := sqlengine.NewEngineFromSQLDB(sqliteDB, sqlengine.WithDialect(sqlengine.DialectSQLite))
package sqlengine
