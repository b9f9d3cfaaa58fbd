package projectors

import (
	"fmt"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
)

// Producer computes a single value from an instance.
type Producer func(instance *readers.Instance) (any, error)

// Projector turns an instance into an ordered Mapping.
type Projector func(instance *readers.Instance) (readers.Mapping, error)

// Wrap turns a producer into a projector emitting its value under key.
func Wrap(key string, producer Producer) Projector {
	return func(instance *readers.Instance) (readers.Mapping, error) {
		value, err := producer(instance)
		if err != nil {
			return nil, err
		}

		return readers.MappingOf(key, value), nil
	}
}

// Attr produces the value at a dotted attribute path. Missing single-valued targets yield nil.
func Attr(path string) Producer {
	return func(instance *readers.Instance) (any, error) {
		return instance.Attr(path)
	}
}

// Field projects {name: value}.
func Field(name string) Projector {
	return Wrap(name, Attr(name))
}

// Noop projects an empty mapping.
func Noop(*readers.Instance) (readers.Mapping, error) {
	return readers.NewMapping(), nil
}

// Combine merges the mappings of all projectors in order. A later key overwrites an earlier
// one in its original position. A projector returning a nil mapping fails with ErrProjectionShape.
func Combine(projectors ...Projector) Projector {
	return func(instance *readers.Instance) (readers.Mapping, error) {
		out := readers.NewMapping()

		for idx, projector := range projectors {
			mapping, err := projector(instance)
			if err != nil {
				return nil, err
			}

			if mapping == nil {
				return nil, fmt.Errorf("%w: combined projector %d returned nil", readers.ErrProjectionShape, idx)
			}

			readers.MergeInto(out, mapping)
		}

		return out, nil
	}
}

// Alias renames the single key of the wrapped projector's output to key.
// Outputs with zero or several keys fail with ErrAliasArity.
func Alias(key string, projector Projector) Projector {
	return func(instance *readers.Instance) (readers.Mapping, error) {
		mapping, err := projector(instance)
		if err != nil {
			return nil, err
		}

		if mapping == nil || mapping.Len() != 1 {
			size := 0
			if mapping != nil {
				size = mapping.Len()
			}

			return nil, fmt.Errorf("%w: got %d keys while aliasing to %q", readers.ErrAliasArity, size, key)
		}

		return readers.MappingOf(key, mapping.Oldest().Value), nil
	}
}

// AliasKeys renames the listed keys of the wrapped projector's output in place.
// Keys that are not listed, and listed keys that are absent, are left untouched.
func AliasKeys(renames map[string]string, projector Projector) Projector {
	return func(instance *readers.Instance) (readers.Mapping, error) {
		mapping, err := projector(instance)
		if err != nil {
			return nil, err
		}

		if mapping == nil {
			return nil, fmt.Errorf("%w: aliased projector returned nil", readers.ErrProjectionShape)
		}

		out := readers.NewMapping()
		for pair := mapping.Oldest(); pair != nil; pair = pair.Next() {
			key := pair.Key
			if renamed, ok := renames[key]; ok {
				key = renamed
			}

			out.Set(key, pair.Value)
		}

		return out, nil
	}
}

// MapOrApply applies projector to a prefetched relationship value:
// nil for an absent target, a Mapping for a single target, and a non-nil slice of Mappings for a collection.
func MapOrApply(related readers.Related, projector Projector) (any, error) {
	switch related.Shape() {
	case readers.RelatedSingle:
		return projector(related.Instance())

	case readers.RelatedCollection:
		out := make([]readers.Mapping, 0, len(related.Items()))
		for _, item := range related.Items() {
			mapping, err := projector(item)
			if err != nil {
				return nil, err
			}

			out = append(out, mapping)
		}

		return out, nil

	default:
		return nil, nil
	}
}

// Relationship produces the projection of the relationship prefetched under attr.
func Relationship(attr string, projector Projector) Producer {
	return func(instance *readers.Instance) (any, error) {
		related, err := instance.Related(attr)
		if err != nil {
			return nil, err
		}

		return MapOrApply(related, projector)
	}
}

// First collapses a collection produced by producer to its first element, or nil when empty.
// Other values pass through unchanged.
func First(producer Producer) Producer {
	return func(instance *readers.Instance) (any, error) {
		value, err := producer(instance)
		if err != nil {
			return nil, err
		}

		switch items := value.(type) {
		case []readers.Mapping:
			if len(items) == 0 {
				return nil, nil
			}
			return items[0], nil

		case []any:
			if len(items) == 0 {
				return nil, nil
			}
			return items[0], nil

		default:
			return value, nil
		}
	}
}

// Transform applies fn to the produced value. Nil values skip fn unless applyToNil is set.
func Transform(producer Producer, fn func(any) (any, error), applyToNil bool) Producer {
	return func(instance *readers.Instance) (any, error) {
		value, err := producer(instance)
		if err != nil {
			return nil, err
		}

		if value == nil && !applyToNil {
			return nil, nil
		}

		return fn(value)
	}
}

// Display produces the choice label of a field, falling back to the stored value.
func Display(name string) Producer {
	return func(instance *readers.Instance) (any, error) {
		value, err := instance.Value(name)
		if err != nil {
			return nil, err
		}

		field, ok := instance.Model().Field(name)
		if !ok {
			return value, nil
		}

		return field.Display(value), nil
	}
}

// Truthy produces whether the value of producer is non-zero.
func Truthy(producer Producer) Producer {
	return Transform(producer, func(value any) (any, error) {
		switch v := value.(type) {
		case nil:
			return false, nil
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case int:
			return v != 0, nil
		case float64:
			return v != 0, nil
		case string:
			return v != "", nil
		default:
			return true, nil
		}
	}, true)
}

// Values produces the values of field for every instance of the relationship prefetched under attr.
// A single-valued relationship yields the value itself, or nil when absent.
func Values(attr, field string) Producer {
	return func(instance *readers.Instance) (any, error) {
		related, err := instance.Related(attr)
		if err != nil {
			return nil, err
		}

		switch related.Shape() {
		case readers.RelatedSingle:
			return related.Instance().Attr(field)

		case readers.RelatedCollection:
			out := make([]any, 0, len(related.Items()))
			for _, item := range related.Items() {
				value, err := item.Attr(field)
				if err != nil {
					return nil, err
				}

				out = append(out, value)
			}

			return out, nil

		default:
			return nil, nil
		}
	}
}
