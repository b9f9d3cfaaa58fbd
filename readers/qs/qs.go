package qs

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
)

// Func transforms a QueryPlan into a new QueryPlan.
type Func func(QueryPlan) QueryPlan

// Noop returns the plan unchanged.
func Noop(plan QueryPlan) QueryPlan {
	return plan
}

// Pipe composes transforms left to right. Pipe with no arguments is Noop.
func Pipe(fns ...Func) Func {
	return func(plan QueryPlan) QueryPlan {
		for _, fn := range fns {
			if fn == nil {
				continue
			}

			plan = fn(plan)
		}

		return plan
	}
}

// IncludeFields adds names to the plan's inclusion set.
func IncludeFields(names ...string) Func {
	return func(plan QueryPlan) QueryPlan {
		return plan.Include(names...)
	}
}

// Filter keeps rows matching all expressions.
//
//	qs.Filter(goqu.Ex{"value": goqu.Op{"gte": 10}})
func Filter(expressions ...exp.Expression) Func {
	return func(plan QueryPlan) QueryPlan {
		return plan.Where(expressions...)
	}
}

// Exclude drops rows matching all expressions.
func Exclude(expressions ...exp.Expression) Func {
	return func(plan QueryPlan) QueryPlan {
		if len(expressions) == 0 {
			return plan
		}

		return plan.Where(goqu.Func("NOT", goqu.And(expressions...)))
	}
}

// OrderBy sorts by the given fields, "-name" sorting descending.
func OrderBy(fields ...string) Func {
	return func(plan QueryPlan) QueryPlan {
		return plan.OrderBy(fields...)
	}
}

// Distinct removes duplicate rows.
func Distinct() Func {
	return func(plan QueryPlan) QueryPlan {
		return plan.Distinct()
	}
}

// Bound keeps the rows [offset, offset+limit). On a prefetched plan the window applies per parent instance.
func Bound(offset, limit uint) Func {
	return func(plan QueryPlan) QueryPlan {
		return plan.Bound(offset, limit)
	}
}

// IncludeCount annotates each row with the number of related instances under alias
// and includes the primary key the count is correlated on.
func IncludeCount(alias string, rel readers.RelationshipDescriptor, distinct bool) Func {
	return func(plan QueryPlan) QueryPlan {
		return plan.Include("pk").WithCount(CountAnnotation{Alias: alias, Relationship: rel, Distinct: distinct})
	}
}

// PrefetchForward loads a single-valued reference held by the plan's model.
// The reference field is included on the plan, the primary key on the related plan.
func PrefetchForward(rel readers.RelationshipDescriptor, related QueryPlan, toAttr string) Func {
	return func(plan QueryPlan) QueryPlan {
		if rel.Kind != readers.ForwardSingle {
			return plan.withError(kindMismatch(rel, "forward"))
		}

		return plan.Include(rel.Field).WithPrefetch(Prefetch{
			Relationship: rel,
			Plan:         related.Include("pk"),
			ToAttr:       toAttr,
		})
	}
}

// PrefetchReverse loads the instances of another model that point back at the plan's model.
// The primary key is included on the plan, the back-reference field on the related plan.
func PrefetchReverse(rel readers.RelationshipDescriptor, related QueryPlan, toAttr string) Func {
	return func(plan QueryPlan) QueryPlan {
		if rel.Kind != readers.ReverseSingle && rel.Kind != readers.ReverseMany {
			return plan.withError(kindMismatch(rel, "reverse"))
		}

		return plan.Include("pk").WithPrefetch(Prefetch{
			Relationship: rel,
			Plan:         related.Include(rel.RelatedField),
			ToAttr:       toAttr,
		})
	}
}

// PrefetchManyToMany loads instances linked through a join table.
// The primary key is included on both plans.
func PrefetchManyToMany(rel readers.RelationshipDescriptor, related QueryPlan, toAttr string) Func {
	return func(plan QueryPlan) QueryPlan {
		if rel.Kind != readers.ManyToMany {
			return plan.withError(kindMismatch(rel, "many-to-many"))
		}

		return plan.Include("pk").WithPrefetch(Prefetch{
			Relationship: rel,
			Plan:         related.Include("pk"),
			ToAttr:       toAttr,
		})
	}
}

// AutoPrefetch selects the prefetch strategy from the descriptor's kind.
// prepareRelated narrows the related plan, which starts from the related model.
func AutoPrefetch(rel readers.RelationshipDescriptor, prepareRelated Func, toAttr string) Func {
	return func(plan QueryPlan) QueryPlan {
		if rel.IsZero() {
			return plan.withError(fmt.Errorf("%w: unresolved relationship descriptor %q", readers.ErrRelationshipMetadata, rel.Name))
		}

		related := From(rel.RelatedModel)
		if prepareRelated != nil {
			related = prepareRelated(related)
		}

		switch rel.Kind {
		case readers.ForwardSingle:
			return PrefetchForward(rel, related, toAttr)(plan)
		case readers.ReverseSingle, readers.ReverseMany:
			return PrefetchReverse(rel, related, toAttr)(plan)
		default:
			return PrefetchManyToMany(rel, related, toAttr)(plan)
		}
	}
}

func kindMismatch(rel readers.RelationshipDescriptor, expected string) error {
	if rel.IsZero() {
		return fmt.Errorf("%w: unresolved relationship descriptor %q", readers.ErrRelationshipMetadata, rel.Name)
	}

	return fmt.Errorf(
		"%w: %s.%s is a %s relationship, not %s",
		readers.ErrRelationshipMetadata, rel.Model.Name(), rel.Name, rel.Kind, expected,
	)
}
