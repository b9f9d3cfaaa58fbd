package shortcuts

import (
	"context"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/pairs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/specs"
)

// Fetcher executes prepared query plans. sqlengine.Engine implements it.
type Fetcher interface {
	Fetch(ctx context.Context, plan qs.QueryPlan) ([]*readers.Instance, error)
	Get(ctx context.Context, plan qs.QueryPlan) (*readers.Instance, error)
}

// Option configures ApplySpec.
type Option func(*config)

type config struct {
	requireResults bool
}

// RequireResults makes ApplySpec fail with readers.ErrNotFound when the plan matches no rows.
func RequireResults() Option {
	return func(c *config) {
		c.requireResults = true
	}
}

// ApplySpec compiles spec against the plan's model and returns one mapping per fetched instance.
func ApplySpec(ctx context.Context, fetcher Fetcher, plan qs.QueryPlan, spec specs.Spec, opts ...Option) ([]readers.Mapping, error) {
	pair, err := compile(plan, spec)
	if err != nil {
		return nil, err
	}

	return ApplyPair(ctx, fetcher, plan, pair, opts...)
}

// ApplyPair is ApplySpec for an already compiled pair.
func ApplyPair(ctx context.Context, fetcher Fetcher, plan qs.QueryPlan, pair pairs.Pair, opts ...Option) ([]readers.Mapping, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	instances, err := fetcher.Fetch(ctx, pair.Prepare(plan))
	if err != nil {
		return nil, err
	}

	if cfg.requireResults && len(instances) == 0 {
		return nil, readers.ErrNotFound
	}

	mappings := make([]readers.Mapping, 0, len(instances))
	for _, instance := range instances {
		mapping, projectErr := pair.Project(instance)
		if projectErr != nil {
			return nil, projectErr
		}

		mappings = append(mappings, mapping)
	}

	return mappings, nil
}

// ApplySpecOne projects the single instance the plan matches.
// It fails with readers.ErrNotFound or readers.ErrMultipleFound otherwise.
func ApplySpecOne(ctx context.Context, fetcher Fetcher, plan qs.QueryPlan, spec specs.Spec) (readers.Mapping, error) {
	pair, err := compile(plan, spec)
	if err != nil {
		return nil, err
	}

	instance, err := fetcher.Get(ctx, pair.Prepare(plan))
	if err != nil {
		return nil, err
	}

	return pair.Project(instance)
}

func compile(plan qs.QueryPlan, spec specs.Spec) (pairs.Pair, error) {
	if plan.Model() == nil {
		return pairs.Pair{}, readers.ErrUnknownModel
	}

	return specs.Compile(plan.Model(), spec)
}
