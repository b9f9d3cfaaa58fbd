package readers

import (
	"bytes"
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Mapping is the ordered key/value output of a projector. Keys keep their insertion order,
// which is also the order they are serialized in.
type Mapping = *orderedmap.OrderedMap[string, any]

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// NewMapping creates an empty Mapping.
func NewMapping() Mapping {
	return orderedmap.New[string, any]()
}

// MappingOf builds a Mapping from alternating keys and values.
// It panics when a key is not a string or a value is missing.
func MappingOf(keysAndValues ...any) Mapping {
	if len(keysAndValues)%2 != 0 {
		panic("readers.MappingOf: odd number of arguments")
	}

	m := NewMapping()
	for idx := 0; idx < len(keysAndValues); idx += 2 {
		m.Set(keysAndValues[idx].(string), keysAndValues[idx+1])
	}

	return m
}

// MappingKeys returns the keys of m in order.
func MappingKeys(m Mapping) []string {
	keys := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	return keys
}

// MergeInto copies every entry of src into dst. Existing keys are overwritten in place, new keys are appended.
func MergeInto(dst, src Mapping) {
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(pair.Key, pair.Value)
	}
}

// MarshalMappings serializes a Mapping, a slice of Mappings or any nesting of them as JSON, preserving key order.
func MarshalMappings(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

// MarshalMappingsIndent is like MarshalMappings but indents the output.
// Mappings marshal themselves, so indentation is applied to the compact result.
func MarshalMappingsIndent(v any) ([]byte, error) {
	compact, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
