package sqlengine_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/sqlengine"
	"github.com/AntonStoeckl/dynamic-readers-go/testutil/fixtures"
)

func Test_FactoryFunctions_RejectNilConnections(t *testing.T) {
	tests := []struct {
		name   string
		create func() (sqlengine.Engine, error)
	}{
		{name: "pgx pool", create: func() (sqlengine.Engine, error) { return sqlengine.NewEngineFromPGXPool(nil) }},
		{name: "pgx pool with replica", create: func() (sqlengine.Engine, error) {
			return sqlengine.NewEngineFromPGXPoolWithReplica(nil, (*pgxpool.Pool)(nil))
		}},
		{name: "sql.DB", create: func() (sqlengine.Engine, error) { return sqlengine.NewEngineFromSQLDB(nil) }},
		{name: "sql.DB with replica", create: func() (sqlengine.Engine, error) {
			return sqlengine.NewEngineFromSQLDBWithReplica(fixtures.OpenSQLite(t), nil)
		}},
		{name: "sqlx", create: func() (sqlengine.Engine, error) { return sqlengine.NewEngineFromSQLX(nil) }},
		{name: "sqlx with replica", create: func() (sqlengine.Engine, error) {
			return sqlengine.NewEngineFromSQLXWithReplica(sqlx.NewDb(fixtures.OpenSQLite(t), "sqlite"), nil)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := tc.create()

			// assert
			assert.ErrorIs(t, err, readers.ErrNilDatabaseConnection)
		})
	}
}

func Test_FactoryFunctions_OptionErrors(t *testing.T) {
	// setup
	db := fixtures.OpenSQLite(t)

	// act
	_, dialectErr := sqlengine.NewEngineFromSQLDB(db, sqlengine.WithDialect("oracle"))
	_, batchErr := sqlengine.NewEngineFromSQLDB(db, sqlengine.WithMaxInClause(-1))

	// assert
	assert.ErrorIs(t, dialectErr, readers.ErrUnsupportedDialect)
	assert.Error(t, batchErr)
}

func Test_FactoryFunctions_SQLXEngineFetches(t *testing.T) {
	// setup
	db := fixtures.OpenSQLite(t)
	registry := fixtures.Registry(t)

	engine, err := sqlengine.NewEngineFromSQLX(sqlx.NewDb(db, "sqlite"), sqlengine.WithDialect(sqlengine.DialectSQLite))
	require.NoError(t, err)

	// arrange
	owner := fixtures.GivenOwner(t, db, "alice", nil)
	fixtures.GivenWidget(t, db, "w1", 1, nil, owner)

	// act
	instances, err := engine.Fetch(context.Background(), qs.AutoPrefetch(
		registry.MustModel("widget").MustRelationship("owner"),
		qs.IncludeFields("name"),
		"",
	)(qs.From(registry.MustModel("widget")).Include("name")))

	// assert
	require.NoError(t, err)
	require.Len(t, instances, 1)

	ownerName, err := instances[0].Attr("owner.name")
	require.NoError(t, err)
	assert.Equal(t, "alice", ownerName)
}
