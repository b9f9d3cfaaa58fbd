package specs

import (
	"fmt"
	"slices"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/pairs"
)

// Spec is an ordered list of nodes. Supported nodes:
//
//   - "name": a field
//   - map[string]any{"rel": Spec{...}}: a relationship projected under its own name
//   - map[string]any{"key": "name"}: a field projected under key
//   - map[string]any{"key": map[string]any{"rel": Spec{...}}}: a relationship projected under key,
//     fetched independently of other nodes over the same relationship
//   - Multi{...}: several of the mapping entries above in a fixed order
//   - RelationshipNode: a relationship with options such as Slice or TakeFirst
//   - pairs.Pair: used as-is
type Spec []any

// Entry is one key/value of a Multi node.
type Entry struct {
	Key   string
	Value any
}

// Multi holds several mapping entries whose order is kept. Plain Go maps with more than one
// key are rejected because their iteration order is not stable.
type Multi []Entry

// RelationshipNode is a relationship with options.
type RelationshipNode struct {
	name string
	spec Spec
	opts []pairs.RelationshipOption
}

// Relationship creates a relationship node for name, projected with spec.
func Relationship(name string, spec Spec, opts ...pairs.RelationshipOption) RelationshipNode {
	return RelationshipNode{name: name, spec: spec, opts: opts}
}

// Compile turns spec into one pair for model. Relationship names are resolved against the
// schema now; field names are checked when the prepared plan is executed.
func Compile(model *readers.Model, spec Spec) (pairs.Pair, error) {
	if model == nil {
		return pairs.Pair{}, fmt.Errorf("%w: compiling a spec needs a model", readers.ErrUnknownModel)
	}

	compiled := make([]pairs.Pair, 0, len(spec))
	for _, node := range spec {
		pair, err := compileNode(model, node)
		if err != nil {
			return pairs.Pair{}, err
		}

		compiled = append(compiled, pair)
	}

	return pairs.Combine(compiled...), nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(model *readers.Model, spec Spec) pairs.Pair {
	pair, err := Compile(model, spec)
	if err != nil {
		panic(err)
	}

	return pair
}

func compileNode(model *readers.Model, node any) (pairs.Pair, error) {
	switch n := node.(type) {
	case string:
		return pairs.Field(n), nil

	case pairs.Pair:
		return n, nil

	case RelationshipNode:
		return compileRelationship(model, n.name, n.spec, n.opts...)

	case map[string]any:
		if len(n) != 1 {
			return pairs.Pair{}, fmt.Errorf(
				"%w: mapping node with %d keys on model %q; use specs.Multi to keep an order",
				readers.ErrSpecShape, len(n), model.Name(),
			)
		}

		for key, value := range n {
			return compileEntry(model, key, value)
		}

	case Multi:
		compiled := make([]pairs.Pair, 0, len(n))
		for _, entry := range n {
			pair, err := compileEntry(model, entry.Key, entry.Value)
			if err != nil {
				return pairs.Pair{}, err
			}

			compiled = append(compiled, pair)
		}

		return pairs.Combine(compiled...), nil
	}

	return pairs.Pair{}, fmt.Errorf("%w: unsupported node %T on model %q", readers.ErrSpecShape, node, model.Name())
}

func compileEntry(model *readers.Model, key string, value any) (pairs.Pair, error) {
	if childSpec, ok := asSpec(value); ok {
		return compileRelationship(model, key, childSpec)
	}

	switch v := value.(type) {
	case string:
		return pairs.Alias(key, pairs.Field(v)), nil

	case RelationshipNode:
		return compileRelationship(model, v.name, v.spec, append(slices.Clip(v.opts), pairs.ToAttr(key))...)

	case pairs.Pair:
		return pairs.Alias(key, v), nil

	case map[string]any:
		if len(v) != 1 {
			return pairs.Pair{}, fmt.Errorf(
				"%w: aliased node %q must hold exactly one entry, got %d",
				readers.ErrSpecShape, key, len(v),
			)
		}

		for name, inner := range v {
			if childSpec, ok := asSpec(inner); ok {
				return compileRelationship(model, name, childSpec, pairs.ToAttr(key))
			}

			pair, err := compileEntry(model, name, inner)
			if err != nil {
				return pairs.Pair{}, err
			}

			return pairs.Alias(key, pair), nil
		}
	}

	return pairs.Pair{}, fmt.Errorf("%w: unsupported value %T under key %q on model %q", readers.ErrSpecShape, value, key, model.Name())
}

func compileRelationship(model *readers.Model, name string, spec Spec, opts ...pairs.RelationshipOption) (pairs.Pair, error) {
	rel, err := model.Relationship(name)
	if err != nil {
		return pairs.Pair{}, err
	}

	child, err := Compile(rel.RelatedModel, spec)
	if err != nil {
		return pairs.Pair{}, err
	}

	return pairs.Relationship(rel, child, opts...), nil
}

func asSpec(value any) (Spec, bool) {
	switch v := value.(type) {
	case Spec:
		return v, true
	case []any:
		return Spec(v), true
	case []string:
		spec := make(Spec, 0, len(v))
		for _, s := range v {
			spec = append(spec, s)
		}
		return spec, true
	default:
		return nil, false
	}
}
