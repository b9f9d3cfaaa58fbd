// Package config provides database connection helpers for the readers command.
//
// It contains factory functions for connections through the supported drivers
// (pgx.Pool, sql.DB with lib/pq or SQLite, sqlx.DB) with pool settings applied
// and the DSN taken from flags or the environment.
package config
