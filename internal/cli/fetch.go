package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/dynamic-readers-go/internal/config"
	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/sqlengine"
)

// FetchOptions holds the flags of the fetch command.
type FetchOptions struct {
	QueryOptions
	First  bool
	Pretty bool
	Stats  bool
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the instances of a model and print their projection",
		Long: `Fetch the instances of a model and print their projection as JSON.

The spec is a YAML or JSON list of field names and relationship mappings.
Without --spec every concrete field of the model is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	addQueryFlags(cmd, &opts.QueryOptions)
	cmd.Flags().BoolVar(&opts.First, "first", false, "print only the first instance")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent the JSON output")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "print fetch metrics to stderr")

	return cmd
}

func addQueryFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "root model name")
	cmd.Flags().StringVarP(&opts.SpecPath, "spec", "s", "", "path to a YAML or JSON spec")
	cmd.Flags().StringSliceVar(&opts.Order, "order", nil, "order by fields, prefix with - for descending")
	cmd.Flags().UintVar(&opts.Limit, "limit", 0, "maximum number of instances")
	cmd.Flags().UintVar(&opts.Offset, "offset", 0, "number of instances to skip")
	_ = cmd.MarkFlagRequired("model")
}

func runFetch(ctx context.Context, rootOpts *RootOptions, opts *FetchOptions, cmd *cobra.Command) error {
	pair, plan, err := preparePlan(rootOpts, &opts.QueryOptions)
	if err != nil {
		return err
	}

	dsn, err := config.DSN(rootOpts.DSN)
	if err != nil {
		return err
	}

	engineOptions := []sqlengine.Option{sqlengine.WithLogger(newLogger(cmd.ErrOrStderr(), rootOpts.Verbose))}

	var stats *statsCollector
	if opts.Stats {
		stats = newStatsCollector()
		engineOptions = append(engineOptions, sqlengine.WithMetrics(stats.collector))
	}

	engine, closeDB, err := config.OpenEngine(ctx, rootOpts.Driver, dsn, engineOptions...)
	if err != nil {
		return err
	}
	defer closeDB()

	var result any
	if opts.First {
		instance, fetchErr := engine.First(ctx, plan)
		if fetchErr != nil {
			return fetchErr
		}

		if result, err = pair.Project(instance); err != nil {
			return err
		}
	} else {
		instances, fetchErr := engine.Fetch(ctx, plan)
		if fetchErr != nil {
			return fetchErr
		}

		mappings := make([]readers.Mapping, 0, len(instances))
		for _, instance := range instances {
			mapping, projectErr := pair.Project(instance)
			if projectErr != nil {
				return projectErr
			}

			mappings = append(mappings, mapping)
		}

		result = mappings
	}

	if err := writeJSON(cmd.OutOrStdout(), result, opts.Pretty); err != nil {
		return err
	}

	if stats != nil {
		return stats.write(ctx, cmd.ErrOrStderr())
	}

	return nil
}

func writeJSON(w io.Writer, value any, pretty bool) error {
	marshal := readers.MarshalMappings
	if pretty {
		marshal = readers.MarshalMappingsIndent
	}

	out, err := marshal(value)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(out))

	return err
}
