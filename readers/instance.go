package readers

import (
	"fmt"
	"strings"
)

/***** Related *****/

// RelatedShape tells which of the three forms a Related value takes.
type RelatedShape int

const (
	// RelatedAbsent is a single-valued relationship without a target.
	RelatedAbsent RelatedShape = iota

	// RelatedSingle is a single-valued relationship with a target.
	RelatedSingle

	// RelatedCollection is a to-many relationship, possibly empty.
	RelatedCollection
)

// Related is the prefetched value of a relationship attribute.
type Related struct {
	shape    RelatedShape
	instance *Instance
	items    []*Instance
}

// AbsentRelated represents a missing single-valued target.
func AbsentRelated() Related {
	return Related{shape: RelatedAbsent}
}

// SingleRelated wraps a single target. A nil instance yields AbsentRelated.
func SingleRelated(instance *Instance) Related {
	if instance == nil {
		return AbsentRelated()
	}

	return Related{shape: RelatedSingle, instance: instance}
}

// CollectionRelated wraps a to-many result. A nil slice is normalized to an empty collection.
func CollectionRelated(items []*Instance) Related {
	if items == nil {
		items = []*Instance{}
	}

	return Related{shape: RelatedCollection, items: items}
}

func (r Related) Shape() RelatedShape {
	return r.shape
}

// Instance returns the single target or nil.
func (r Related) Instance() *Instance {
	return r.instance
}

// Items returns the collection, which is never nil for RelatedCollection.
func (r Related) Items() []*Instance {
	return r.items
}

/***** Instance *****/

// Instance is one fetched row together with its prefetched relationships.
// Reading an attribute never triggers a database round trip: anything the
// query plan did not load is reported as ErrFieldNotLoaded or ErrRelationshipNotLoaded.
type Instance struct {
	model   *Model
	values  map[string]any
	related map[string]Related
}

// NewInstance creates an empty Instance of model.
func NewInstance(model *Model) *Instance {
	return &Instance{
		model:   model,
		values:  make(map[string]any),
		related: make(map[string]Related),
	}
}

func (i *Instance) Model() *Model {
	return i.model
}

// SetValue stores a loaded field or annotation value.
func (i *Instance) SetValue(name string, value any) {
	i.values[i.model.ResolveFieldName(name)] = value
}

// SetRelated attaches a prefetched relationship under attr.
func (i *Instance) SetRelated(attr string, related Related) {
	i.related[attr] = related
}

// Value returns a loaded field or annotation value. "pk" resolves to the primary key.
func (i *Instance) Value(name string) (any, error) {
	name = i.model.ResolveFieldName(name)

	if value, ok := i.values[name]; ok {
		return value, nil
	}

	if _, ok := i.model.Field(name); ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotLoaded, i.model.name, name)
	}

	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, i.model.name, name)
}

// PK returns the primary key value.
func (i *Instance) PK() (any, error) {
	return i.Value(i.model.pk)
}

// Related returns the prefetched relationship stored under attr.
func (i *Instance) Related(attr string) (Related, error) {
	if related, ok := i.related[attr]; ok {
		return related, nil
	}

	if i.model.HasRelationship(attr) {
		return Related{}, fmt.Errorf("%w: %s.%s", ErrRelationshipNotLoaded, i.model.name, attr)
	}

	return Related{}, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, i.model.name, attr)
}

// Attr resolves a dotted attribute path. Intermediate segments traverse
// single-valued relationships; a missing target short-circuits to nil.
// The final segment prefers loaded values over prefetched relationships, so
// "owner" yields the stored reference when both are available.
func (i *Instance) Attr(path string) (any, error) {
	segments := strings.Split(path, ".")
	current := i

	for idx, segment := range segments {
		if idx == len(segments)-1 {
			return current.finalAttr(segment)
		}

		next, err := current.traverse(segment)
		if err != nil {
			return nil, err
		}

		if next == nil {
			return nil, nil
		}

		current = next
	}

	return nil, nil
}

func (i *Instance) finalAttr(segment string) (any, error) {
	if value, ok := i.values[i.model.ResolveFieldName(segment)]; ok {
		return value, nil
	}

	if related, ok := i.related[segment]; ok {
		return related, nil
	}

	if i.model.HasRelationship(segment) {
		return nil, fmt.Errorf("%w: %s.%s", ErrRelationshipNotLoaded, i.model.name, segment)
	}

	return i.Value(segment)
}

func (i *Instance) traverse(segment string) (*Instance, error) {
	if related, ok := i.related[segment]; ok {
		switch related.shape {
		case RelatedSingle:
			return related.instance, nil
		case RelatedCollection:
			return nil, fmt.Errorf("%w: %s.%s", ErrTraverseToMany, i.model.name, segment)
		default:
			return nil, nil
		}
	}

	if i.model.HasRelationship(segment) {
		return nil, fmt.Errorf("%w: %s.%s", ErrRelationshipNotLoaded, i.model.name, segment)
	}

	value, err := i.Value(segment)
	if err != nil {
		return nil, err
	}

	if value == nil {
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %s.%s is not a relationship", ErrUnknownAttribute, i.model.name, segment)
}
