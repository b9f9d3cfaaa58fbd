package config

import (
	"context"
	"fmt"

	"github.com/AntonStoeckl/dynamic-readers-go/readers/sqlengine"
)

// OpenEngine connects through driver and returns an engine for its dialect.
// The returned close function releases the connection.
func OpenEngine(ctx context.Context, driver, dsn string, options ...sqlengine.Option) (sqlengine.Engine, func(), error) {
	switch driver {
	case DriverPGX:
		pool, err := OpenPGXPool(ctx, dsn)
		if err != nil {
			return sqlengine.Engine{}, nil, err
		}

		engine, err := sqlengine.NewEngineFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return sqlengine.Engine{}, nil, err
		}

		return engine, pool.Close, nil

	case DriverSQLX:
		db, err := OpenSQLX(ctx, dsn)
		if err != nil {
			return sqlengine.Engine{}, nil, err
		}

		engine, err := sqlengine.NewEngineFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return sqlengine.Engine{}, nil, err
		}

		return engine, func() { _ = db.Close() }, nil

	case DriverPostgres, DriverSQLite:
		db, err := OpenSQLDB(ctx, driver, dsn)
		if err != nil {
			return sqlengine.Engine{}, nil, err
		}

		if driver == DriverSQLite {
			options = append([]sqlengine.Option{sqlengine.WithDialect(sqlengine.DialectSQLite)}, options...)
		}

		engine, err := sqlengine.NewEngineFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return sqlengine.Engine{}, nil, err
		}

		return engine, func() { _ = db.Close() }, nil

	default:
		return sqlengine.Engine{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}
