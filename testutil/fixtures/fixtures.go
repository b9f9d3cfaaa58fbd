package fixtures

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"
	"testing"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // driver registration

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
)

const sqliteDriver = "sqlite"

//go:embed schema.yaml
var SchemaYAML []byte

//go:embed schema.sql
var SchemaSQL string

var dialect = goqu.Dialect("sqlite3")

// Registry resolves the widget test schema.
func Registry(t testing.TB) *readers.Registry {
	t.Helper()

	registry, err := readers.LoadSchemaYAML(SchemaYAML)
	require.NoError(t, err, "loading fixture schema")

	return registry
}

// OpenSQLite opens a private in-memory database with the fixture tables.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	return OpenSQLiteDSN(t, ":memory:")
}

// OpenSQLiteDSN opens the database at dsn and creates the fixture tables.
// A single connection is used so that in-memory databases stay shared.
func OpenSQLiteDSN(t testing.TB, dsn string) *sql.DB {
	t.Helper()

	db, err := sql.Open(sqliteDriver, dsn)
	require.NoError(t, err, "opening sqlite")
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range strings.Split(SchemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		_, err = db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, "creating fixture tables")
	}

	return db
}

func insert(t testing.TB, db *sql.DB, table string, record goqu.Record) int64 {
	t.Helper()

	query, _, err := dialect.Insert(table).Rows(record).ToSQL()
	require.NoError(t, err, "building insert for %s", table)

	result, err := db.ExecContext(context.Background(), query)
	require.NoError(t, err, "inserting into %s", table)

	id, err := result.LastInsertId()
	require.NoError(t, err, "reading inserted id")

	return id
}

// GivenGroup inserts a group and returns its id.
func GivenGroup(t testing.TB, db *sql.DB, name string) int64 {
	return insert(t, db, "owner_groups", goqu.Record{"name": name})
}

// GivenOwner inserts an owner. groupID may be nil.
func GivenOwner(t testing.TB, db *sql.DB, name string, groupID any) int64 {
	return insert(t, db, "owners", goqu.Record{"name": name, "group_id": groupID})
}

// GivenWidget inserts a widget. other and ownerID may be nil.
func GivenWidget(t testing.TB, db *sql.DB, name string, value int, other, ownerID any) int64 {
	return insert(t, db, "widgets", goqu.Record{"name": name, "value": value, "other": other, "owner_id": ownerID})
}

// GivenThing inserts a thing. widgetID may be nil.
func GivenThing(t testing.TB, db *sql.DB, name, size string, widgetID any) int64 {
	return insert(t, db, "things", goqu.Record{"name": name, "size": size, "widget_id": widgetID})
}

// GivenCategory inserts a category.
func GivenCategory(t testing.TB, db *sql.DB, name string) int64 {
	return insert(t, db, "categories", goqu.Record{"name": name})
}

// GivenCategoryWidget links a category to a widget.
func GivenCategoryWidget(t testing.TB, db *sql.DB, categoryID, widgetID int64) {
	insert(t, db, "category_widgets", goqu.Record{"category_id": categoryID, "widget_id": widgetID})
}
