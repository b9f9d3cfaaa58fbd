package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/dynamic-readers-go/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	SchemaPath string
	Driver     string
	DSN        string
	Verbose    bool
}

// ValidDrivers defines the accepted values of --driver.
var ValidDrivers = []string{config.DriverPGX, config.DriverPostgres, config.DriverSQLX, config.DriverSQLite}

// NewRootCommand creates the root command of the readers CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "readers",
		Short: "Fetch and project nested data described by a spec",
		Long: `Compile a spec against a YAML schema, fetch the result with one query
per relationship level and print the projected JSON.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidDrivers, opts.Driver) {
				return fmt.Errorf("invalid driver %q: must be one of %v", opts.Driver, ValidDrivers)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.SchemaPath, "schema", "", "path to the YAML schema")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", config.DriverPGX, "database driver (pgx|postgres|sqlx|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "data source name, defaults to $"+config.EnvDSN)
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log executed statements to stderr")
	_ = cmd.MarkPersistentFlagRequired("schema")

	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewDescribeCommand(opts))

	return cmd
}

// newLogger writes debug records to w when verbose is set and warnings otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
