package config

import (
	"errors"
	"os"
)

const (
	// EnvDSN names the environment variable holding the default DSN.
	EnvDSN = "READERS_DSN"

	// EnvReplicaDSN names the environment variable holding the optional replica DSN.
	EnvReplicaDSN = "READERS_REPLICA_DSN"
)

// Supported drivers.
const (
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLX     = "sqlx"
	DriverSQLite   = "sqlite"
)

// ErrMissingDSN is returned when neither a flag nor the environment provides a DSN.
var ErrMissingDSN = errors.New("no dsn given and " + EnvDSN + " is not set")

// ErrUnsupportedDriver is returned for driver names other than the supported ones.
var ErrUnsupportedDriver = errors.New("unsupported driver")

// DSN returns explicit when it is set and the value of READERS_DSN otherwise.
func DSN(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if dsn := os.Getenv(EnvDSN); dsn != "" {
		return dsn, nil
	}

	return "", ErrMissingDSN
}

// ReplicaDSN returns the value of READERS_REPLICA_DSN, which may be empty.
func ReplicaDSN() string {
	return os.Getenv(EnvReplicaDSN)
}
