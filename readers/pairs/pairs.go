package pairs

import (
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/dynamic-readers-go/readers/projectors"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
)

const (
	displaySuffix = "_display"
	countSuffix   = "_count"
	hasPrefix     = "has_"
)

// Pair bundles what a read needs from the database with how the result is projected.
// The preparation of a pair always loads everything its projection touches.
type Pair struct {
	Prepare qs.Func
	Project projectors.Projector
}

// New creates a pair from both halves. Nil halves default to their no-op.
func New(prepare qs.Func, project projectors.Projector) Pair {
	if prepare == nil {
		prepare = qs.Noop
	}

	if project == nil {
		project = projectors.Noop
	}

	return Pair{Prepare: prepare, Project: project}
}

// PrepareOnly contributes to the query plan without projecting anything.
func PrepareOnly(prepare qs.Func) Pair {
	return New(prepare, projectors.Noop)
}

// ProjectOnly projects without touching the query plan.
func ProjectOnly(project projectors.Projector) Pair {
	return New(qs.Noop, project)
}

// FieldOption configures Field.
type FieldOption func(*fieldConfig)

type fieldConfig struct {
	transform  func(any) (any, error)
	applyToNil bool
}

// WithTransform applies fn to the stored value. Nil values skip fn.
func WithTransform(fn func(any) (any, error)) FieldOption {
	return func(c *fieldConfig) {
		c.transform = fn
	}
}

// TransformNil makes WithTransform also apply to nil values.
func TransformNil() FieldOption {
	return func(c *fieldConfig) {
		c.applyToNil = true
	}
}

// Field loads and projects one concrete field.
func Field(name string, opts ...FieldOption) Pair {
	var cfg fieldConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	producer := projectors.Attr(name)
	if cfg.transform != nil {
		producer = projectors.Transform(producer, cfg.transform, cfg.applyToNil)
	}

	return New(qs.IncludeFields(name), projectors.Wrap(name, producer))
}

// FieldDisplay loads a field and projects the label of its declared choice under "<name>_display".
func FieldDisplay(name string) Pair {
	return New(qs.IncludeFields(name), projectors.Wrap(name+displaySuffix, projectors.Display(name)))
}

// Combine runs all preparations in order and merges all projections in order.
func Combine(pairs ...Pair) Pair {
	prepares := make([]qs.Func, 0, len(pairs))
	projects := make([]projectors.Projector, 0, len(pairs))

	for _, p := range pairs {
		prepares = append(prepares, p.Prepare)
		projects = append(projects, p.Project)
	}

	return New(qs.Pipe(prepares...), projectors.Combine(projects...))
}

// Alias renames the single key projected by pair.
func Alias(key string, pair Pair) Pair {
	return New(pair.Prepare, projectors.Alias(key, pair.Project))
}

// AliasKeys renames the listed keys projected by pair.
func AliasKeys(renames map[string]string, pair Pair) Pair {
	return New(pair.Prepare, projectors.AliasKeys(renames, pair.Project))
}

// Filter restricts the rows of the plan the pair is applied to.
func Filter(expressions ...exp.Expression) Pair {
	return PrepareOnly(qs.Filter(expressions...))
}

// Exclude drops matching rows from the plan the pair is applied to.
func Exclude(expressions ...exp.Expression) Pair {
	return PrepareOnly(qs.Exclude(expressions...))
}

// OrderBy sorts the plan the pair is applied to.
func OrderBy(fields ...string) Pair {
	return PrepareOnly(qs.OrderBy(fields...))
}
