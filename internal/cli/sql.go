package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/dynamic-readers-go/readers/sqlengine"
)

const sqliteDriverName = "sqlite"

// SQLOptions holds the flags of the sql command.
type SQLOptions struct {
	QueryOptions
	Dialect string
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{}

	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the root statement a fetch would execute",
		Long: `Print the root statement a fetch would execute without connecting to a database.

Prefetch statements depend on the keys of the fetched rows and are only visible with fetch --verbose.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, opts, cmd)
		},
	}

	addQueryFlags(cmd, &opts.QueryOptions)
	cmd.Flags().StringVar(&opts.Dialect, "dialect", sqlengine.DialectPostgres, "SQL dialect (postgres|sqlite3)")

	return cmd
}

func runSQL(rootOpts *RootOptions, opts *SQLOptions, cmd *cobra.Command) error {
	_, plan, err := preparePlan(rootOpts, &opts.QueryOptions)
	if err != nil {
		return err
	}

	// sql.Open does not connect, the handle only satisfies the engine constructor
	db, err := sql.Open(sqliteDriverName, ":memory:")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	engine, err := sqlengine.NewEngineFromSQLDB(db, sqlengine.WithDialect(opts.Dialect))
	if err != nil {
		return err
	}

	statement, err := engine.SQL(plan)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), statement)

	return err
}
