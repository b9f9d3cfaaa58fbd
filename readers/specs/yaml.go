package specs

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
)

// ParseYAML reads a spec from a YAML sequence. Mapping order is preserved: a mapping with
// several keys becomes a Multi node.
//
//	- name
//	- owner:
//	    - name
//	- title: name
//	- first_category:
//	    category_set: [name]
func ParseYAML(data []byte) (Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(readers.ErrSpecShape, err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return Spec{}, nil
	}

	return parseSequence(doc.Content[0])
}

func parseSequence(node *yaml.Node) (Spec, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: line %d: expected a list", readers.ErrSpecShape, node.Line)
	}

	spec := make(Spec, 0, len(node.Content))
	for _, item := range node.Content {
		parsed, err := parseNode(item)
		if err != nil {
			return nil, err
		}

		spec = append(spec, parsed)
	}

	return spec, nil
}

func parseNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag != "!!str" {
			return nil, fmt.Errorf("%w: line %d: %q is not a field name", readers.ErrSpecShape, node.Line, node.Value)
		}

		return node.Value, nil

	case yaml.SequenceNode:
		return parseSequence(node)

	case yaml.MappingNode:
		return parseMapping(node)

	case yaml.AliasNode:
		return parseNode(node.Alias)

	default:
		return nil, fmt.Errorf("%w: line %d: unsupported yaml node", readers.ErrSpecShape, node.Line)
	}
}

func parseMapping(node *yaml.Node) (any, error) {
	entries := make(Multi, 0, len(node.Content)/2)

	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		keyNode, valueNode := node.Content[idx], node.Content[idx+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: line %d: mapping keys must be names", readers.ErrSpecShape, keyNode.Line)
		}

		value, err := parseNode(valueNode)
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{Key: keyNode.Value, Value: value})
	}

	if len(entries) == 1 {
		return map[string]any{entries[0].Key: entries[0].Value}, nil
	}

	return entries, nil
}
