// Package specs compiles a nested, declarative description of the desired output into a single pairs.Pair.
//
//	pair, err := specs.Compile(widget, specs.Spec{
//		"name",
//		map[string]any{"owner": specs.Spec{"name", map[string]any{"group": specs.Spec{"name"}}}},
//		map[string]any{"title": "name"},
//	})
//
// Preparing a plan with the pair and executing it issues one query per relationship level.
// Projecting every fetched instance with the pair yields mappings whose keys follow the spec's order.
package specs
