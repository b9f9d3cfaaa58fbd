package config

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

// OpenSQLX opens a configured *sqlx.DB on the lib/pq driver and pings it.
func OpenSQLX(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, err
	}

	configurePool(db, DriverSQLX)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, errors.Join(errors.New("ping failed"), pingErr)
	}

	return db, nil
}
