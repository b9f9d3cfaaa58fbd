package pairs

import (
	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/projectors"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
)

// RelationshipOption configures a relationship pair.
type RelationshipOption func(*relationshipConfig)

type relationshipConfig struct {
	toAttr    string
	prepare   qs.Func
	bounds    *qs.Bounds
	takeFirst bool
}

// ToAttr stores the prefetched instances under attr and projects them under the same key.
// Two pairs over the same relationship with different ToAttr values are fetched independently.
func ToAttr(attr string) RelationshipOption {
	return func(c *relationshipConfig) {
		c.toAttr = attr
	}
}

// Prepare applies an extra transformation to the related plan after the child pair's preparation.
func Prepare(fn qs.Func) RelationshipOption {
	return func(c *relationshipConfig) {
		c.prepare = fn
	}
}

// Slice keeps the related rows [offset, offset+limit) of each parent.
func Slice(offset, limit uint) RelationshipOption {
	return func(c *relationshipConfig) {
		c.bounds = &qs.Bounds{Offset: offset, Limit: limit}
	}
}

// TakeFirst projects the first related instance, or nil, instead of a list.
func TakeFirst() RelationshipOption {
	return func(c *relationshipConfig) {
		c.takeFirst = true
	}
}

func newRelationshipConfig(rel readers.RelationshipDescriptor, opts []RelationshipOption) relationshipConfig {
	cfg := relationshipConfig{toAttr: rel.Name}
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

func (c relationshipConfig) relatedPrepare(child Pair) qs.Func {
	fns := []qs.Func{child.Prepare, c.prepare}
	if c.bounds != nil {
		fns = append(fns, qs.Bound(c.bounds.Offset, c.bounds.Limit))
	}

	return qs.Pipe(fns...)
}

func (c relationshipConfig) producer(produce projectors.Producer) projectors.Producer {
	if c.takeFirst {
		return projectors.First(produce)
	}

	return produce
}

type prefetchStrategy func(rel readers.RelationshipDescriptor, related qs.QueryPlan, toAttr string) qs.Func

func relationship(strategy prefetchStrategy, rel readers.RelationshipDescriptor, child Pair, opts []RelationshipOption) Pair {
	cfg := newRelationshipConfig(rel, opts)

	prepare := func(plan qs.QueryPlan) qs.QueryPlan {
		if rel.IsZero() {
			return qs.AutoPrefetch(rel, nil, cfg.toAttr)(plan)
		}

		related := cfg.relatedPrepare(child)(qs.From(rel.RelatedModel))

		return strategy(rel, related, cfg.toAttr)(plan)
	}

	project := projectors.Wrap(cfg.toAttr, cfg.producer(projectors.Relationship(cfg.toAttr, child.Project)))

	return New(prepare, project)
}

// ForwardRelationship prefetches a single-valued reference and projects it with child.
func ForwardRelationship(rel readers.RelationshipDescriptor, child Pair, opts ...RelationshipOption) Pair {
	return relationship(qs.PrefetchForward, rel, child, opts)
}

// ReverseRelationship prefetches the instances pointing back at the model and projects them with child.
func ReverseRelationship(rel readers.RelationshipDescriptor, child Pair, opts ...RelationshipOption) Pair {
	return relationship(qs.PrefetchReverse, rel, child, opts)
}

// ManyToManyRelationship prefetches instances linked through a join table and projects them with child.
func ManyToManyRelationship(rel readers.RelationshipDescriptor, child Pair, opts ...RelationshipOption) Pair {
	return relationship(qs.PrefetchManyToMany, rel, child, opts)
}

// Relationship picks the prefetch strategy from the descriptor's kind.
func Relationship(rel readers.RelationshipDescriptor, child Pair, opts ...RelationshipOption) Pair {
	switch rel.Kind {
	case readers.ForwardSingle:
		return ForwardRelationship(rel, child, opts...)
	case readers.ReverseSingle, readers.ReverseMany:
		return ReverseRelationship(rel, child, opts...)
	default:
		return ManyToManyRelationship(rel, child, opts...)
	}
}

// AutoRelationship resolves name on model and builds the matching relationship pair.
func AutoRelationship(model *readers.Model, name string, child Pair, opts ...RelationshipOption) (Pair, error) {
	rel, err := model.Relationship(name)
	if err != nil {
		return Pair{}, err
	}

	return Relationship(rel, child, opts...), nil
}

// RelatedField projects only field of the related instances instead of a nested mapping:
// the value itself for single-valued relationships and a list of values otherwise.
func RelatedField(rel readers.RelationshipDescriptor, field string, opts ...RelationshipOption) Pair {
	cfg := newRelationshipConfig(rel, opts)
	pair := Relationship(rel, Field(field), opts...)

	return New(pair.Prepare, projectors.Wrap(cfg.toAttr, cfg.producer(projectors.Values(cfg.toAttr, field))))
}

// PKList projects the primary keys of the related instances as a list.
func PKList(rel readers.RelationshipDescriptor, opts ...RelationshipOption) Pair {
	return RelatedField(rel, "pk", opts...)
}

// Count annotates and projects the number of related instances under "<name>_count".
func Count(rel readers.RelationshipDescriptor, distinct bool) Pair {
	alias := rel.Name + countSuffix

	return New(qs.IncludeCount(alias, rel, distinct), projectors.Field(alias))
}

// Has projects whether any related instance exists under "has_<name>".
func Has(rel readers.RelationshipDescriptor) Pair {
	alias := rel.Name + countSuffix

	return New(
		qs.IncludeCount(alias, rel, true),
		projectors.Wrap(hasPrefix+rel.Name, projectors.Truthy(projectors.Attr(alias))),
	)
}
