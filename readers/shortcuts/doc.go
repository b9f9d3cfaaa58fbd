// Package shortcuts runs a whole read in one call: compile the spec, prepare the plan, fetch and project.
//
//	mappings, err := shortcuts.ApplySpec(ctx, engine, qs.From(widget), specs.Spec{
//		"name",
//		map[string]any{"owner": specs.Spec{"name"}},
//	})
package shortcuts
