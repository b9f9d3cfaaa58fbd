package qs

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
)

/***** Ordering *****/

// Ordering sorts by one field of the plan's model.
type Ordering struct {
	Field string
	Desc  bool
}

/***** Bounds *****/

// Bounds restricts a plan to a window of rows. A zero Limit means no upper bound.
type Bounds struct {
	Offset uint
	Limit  uint
}

/***** Prefetch *****/

// Prefetch declares that a relationship is loaded in one batch for all instances of a level
// and stored on each instance under ToAttr.
type Prefetch struct {
	Relationship readers.RelationshipDescriptor
	Plan         QueryPlan
	ToAttr       string
}

/***** CountAnnotation *****/

// CountAnnotation adds a per-row count of related instances under Alias.
type CountAnnotation struct {
	Alias        string
	Relationship readers.RelationshipDescriptor
	Distinct     bool
}

/***** QueryPlan *****/

// QueryPlan is an immutable description of what to fetch for one model.
// Every transformation returns a new plan and leaves its input untouched.
type QueryPlan struct {
	model       *readers.Model
	fields      []string
	restricted  bool
	filters     []exp.Expression
	orderings   []Ordering
	distinct    bool
	bounds      *Bounds
	prefetches  []Prefetch
	annotations []CountAnnotation
	err         error
}

// From starts a plan that loads every concrete field of model.
func From(model *readers.Model) QueryPlan {
	return QueryPlan{model: model}
}

func (p QueryPlan) Model() *readers.Model {
	return p.model
}

// Fields returns the explicitly included fields in order of first inclusion,
// and whether the plan is restricted to them. An unrestricted plan loads every field.
func (p QueryPlan) Fields() ([]string, bool) {
	return slices.Clone(p.fields), p.restricted
}

func (p QueryPlan) Filters() []exp.Expression {
	return slices.Clone(p.filters)
}

func (p QueryPlan) Orderings() []Ordering {
	return slices.Clone(p.orderings)
}

func (p QueryPlan) IsDistinct() bool {
	return p.distinct
}

// Bounds returns the row window if one was set.
func (p QueryPlan) Bounds() (Bounds, bool) {
	if p.bounds == nil {
		return Bounds{}, false
	}

	return *p.bounds, true
}

func (p QueryPlan) Prefetches() []Prefetch {
	return slices.Clone(p.prefetches)
}

func (p QueryPlan) Annotations() []CountAnnotation {
	return slices.Clone(p.annotations)
}

// Err returns misuse recorded while transforming the plan, such as prefetching a
// relationship that does not belong to the plan's model. Executing such a plan fails.
func (p QueryPlan) Err() error {
	return p.err
}

func (p QueryPlan) clone() QueryPlan {
	out := p
	out.fields = slices.Clone(p.fields)
	out.filters = slices.Clone(p.filters)
	out.orderings = slices.Clone(p.orderings)
	out.prefetches = slices.Clone(p.prefetches)
	out.annotations = slices.Clone(p.annotations)

	if p.bounds != nil {
		b := *p.bounds
		out.bounds = &b
	}

	return out
}

func (p QueryPlan) withError(err error) QueryPlan {
	out := p.clone()
	out.err = errors.Join(p.err, err)

	return out
}

// Include restricts the plan to the union of its current inclusion set and names.
// Including the same name twice has no further effect.
func (p QueryPlan) Include(names ...string) QueryPlan {
	out := p.clone()
	out.restricted = true

	for _, name := range names {
		if p.model != nil {
			name = p.model.ResolveFieldName(name)
		}

		if !slices.Contains(out.fields, name) {
			out.fields = append(out.fields, name)
		}
	}

	return out
}

// Where adds filter expressions that are ANDed with the existing ones.
func (p QueryPlan) Where(expressions ...exp.Expression) QueryPlan {
	out := p.clone()
	out.filters = append(out.filters, expressions...)

	return out
}

// OrderBy replaces the ordering. A leading "-" sorts descending.
func (p QueryPlan) OrderBy(fields ...string) QueryPlan {
	out := p.clone()
	out.orderings = make([]Ordering, 0, len(fields))

	for _, field := range fields {
		if len(field) > 1 && field[0] == '-' {
			out.orderings = append(out.orderings, Ordering{Field: field[1:], Desc: true})
			continue
		}

		out.orderings = append(out.orderings, Ordering{Field: field})
	}

	return out
}

// Distinct removes duplicate rows.
func (p QueryPlan) Distinct() QueryPlan {
	out := p.clone()
	out.distinct = true

	return out
}

// Bound restricts the plan to the rows [offset, offset+limit). A zero limit leaves the upper end open.
func (p QueryPlan) Bound(offset, limit uint) QueryPlan {
	out := p.clone()
	out.bounds = &Bounds{Offset: offset, Limit: limit}

	return out
}

// WithPrefetch adds a prefetch declaration after checking that it belongs to the plan's model.
// A declaration for a slot that already holds the same relationship is merged into the existing
// one, so applying a preparation twice does not add statements. The related plans must then agree
// on filters, ordering, distinctness and bounds. A slot holding another relationship is an error.
func (p QueryPlan) WithPrefetch(prefetch Prefetch) QueryPlan {
	if err := p.checkRelationship(prefetch.Relationship); err != nil {
		return p.withError(err)
	}

	if prefetch.ToAttr == "" {
		prefetch.ToAttr = prefetch.Relationship.Name
	}

	idx := slices.IndexFunc(p.prefetches, func(existing Prefetch) bool { return existing.ToAttr == prefetch.ToAttr })
	if idx < 0 {
		out := p.clone()
		out.prefetches = append(out.prefetches, prefetch)

		return out
	}

	existing := p.prefetches[idx]
	if !sameRelationship(existing.Relationship, prefetch.Relationship) {
		return p.withError(fmt.Errorf(
			"%w: slot %q of %s already holds relationship %q, cannot store %q there",
			readers.ErrRelationshipMetadata, prefetch.ToAttr, p.model.Name(), existing.Relationship.Name, prefetch.Relationship.Name,
		))
	}

	if !sameSelection(existing.Plan, prefetch.Plan) {
		return p.withError(fmt.Errorf(
			"%w: relationship %q is prefetched into slot %q twice with different filters, ordering or bounds",
			readers.ErrRelationshipMetadata, prefetch.Relationship.Name, prefetch.ToAttr,
		))
	}

	out := p.clone()
	out.prefetches[idx].Plan = mergePlans(existing.Plan, prefetch.Plan)

	return out
}

// mergePlans loads what either plan loads. Both plans select the same rows.
func mergePlans(base, other QueryPlan) QueryPlan {
	out := base.clone()

	if !other.restricted {
		out.restricted = false
	} else if out.restricted {
		out = out.Include(other.fields...)
	}

	for _, annotation := range other.annotations {
		out = out.WithCount(annotation)
	}

	for _, nested := range other.prefetches {
		out = out.WithPrefetch(nested)
	}

	if other.err != nil {
		out.err = errors.Join(out.err, other.err)
	}

	return out
}

func sameRelationship(a, b readers.RelationshipDescriptor) bool {
	return a.Name == b.Name &&
		a.Kind == b.Kind &&
		a.Model.Name() == b.Model.Name() &&
		a.RelatedModel.Name() == b.RelatedModel.Name()
}

// sameSelection reports whether both plans select the same rows in the same order.
func sameSelection(a, b QueryPlan) bool {
	if a.distinct != b.distinct {
		return false
	}

	if (a.bounds == nil) != (b.bounds == nil) || (a.bounds != nil && *a.bounds != *b.bounds) {
		return false
	}

	if !slices.Equal(a.orderings, b.orderings) {
		return false
	}

	if len(a.filters) == 0 && len(b.filters) == 0 {
		return true
	}

	return reflect.DeepEqual(a.filters, b.filters)
}

// WithCount adds a count annotation. A later annotation with the same alias replaces the earlier one.
func (p QueryPlan) WithCount(annotation CountAnnotation) QueryPlan {
	if err := p.checkRelationship(annotation.Relationship); err != nil {
		return p.withError(err)
	}

	out := p.clone()
	out.annotations = slices.DeleteFunc(out.annotations, func(a CountAnnotation) bool {
		return a.Alias == annotation.Alias
	})
	out.annotations = append(out.annotations, annotation)

	return out
}

func (p QueryPlan) checkRelationship(rel readers.RelationshipDescriptor) error {
	if rel.IsZero() {
		return fmt.Errorf("%w: unresolved relationship descriptor %q", readers.ErrRelationshipMetadata, rel.Name)
	}

	if p.model == nil || rel.Model.Name() != p.model.Name() {
		return fmt.Errorf(
			"%w: relationship %s.%s applied to a plan of another model",
			readers.ErrRelationshipMetadata, rel.Model.Name(), rel.Name,
		)
	}

	return nil
}
