package adapters

import (
	"context"
	"database/sql"
)

// DBAdapter runs read statements for the engine.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
}

// DBRows is the row cursor of a query.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// stdRows wraps sql.Rows for the database/sql and sqlx adapters.
type stdRows struct {
	rows *sql.Rows
}

func (s *stdRows) Next() bool {
	return s.rows.Next()
}

func (s *stdRows) Scan(dest ...any) error {
	return s.rows.Scan(dest...)
}

func (s *stdRows) Err() error {
	return s.rows.Err()
}

func (s *stdRows) Close() error {
	return s.rows.Close()
}
