package cli

import (
	"fmt"
	"os"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/pairs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/specs"
)

// QueryOptions holds the flags shared by the commands that build a query plan.
type QueryOptions struct {
	Model    string
	SpecPath string
	Order    []string
	Limit    uint
	Offset   uint
}

func loadSchema(path string) (*readers.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	return readers.LoadSchemaYAML(data)
}

// loadSpec reads a YAML or JSON spec. Without a path every concrete field of model is projected.
func loadSpec(path string, model *readers.Model) (specs.Spec, error) {
	if path == "" {
		spec := make(specs.Spec, 0, len(model.Fields()))
		for _, field := range model.Fields() {
			spec = append(spec, field.Name)
		}

		return spec, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}

	return specs.ParseYAML(data)
}

// preparePlan compiles the spec and returns the pair together with the prepared root plan.
func preparePlan(rootOpts *RootOptions, opts *QueryOptions) (pairs.Pair, qs.QueryPlan, error) {
	registry, err := loadSchema(rootOpts.SchemaPath)
	if err != nil {
		return pairs.Pair{}, qs.QueryPlan{}, err
	}

	model, err := registry.Model(opts.Model)
	if err != nil {
		return pairs.Pair{}, qs.QueryPlan{}, err
	}

	spec, err := loadSpec(opts.SpecPath, model)
	if err != nil {
		return pairs.Pair{}, qs.QueryPlan{}, err
	}

	pair, err := specs.Compile(model, spec)
	if err != nil {
		return pairs.Pair{}, qs.QueryPlan{}, err
	}

	plan := pair.Prepare(qs.From(model))

	if len(opts.Order) > 0 {
		plan = plan.OrderBy(opts.Order...)
	}

	if opts.Limit > 0 || opts.Offset > 0 {
		plan = plan.Bound(opts.Offset, opts.Limit)
	}

	return pair, plan, nil
}
