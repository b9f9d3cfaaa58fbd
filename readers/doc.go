// Package readers provides the core abstractions for composing data fetching
// and output projection over a relational schema.
//
// A read is described by two halves that travel together:
//   - a preparation step that narrows and extends a query plan (qs package)
//   - a projection step that turns each fetched Instance into an ordered Mapping (projectors package)
//
// The pairs package bundles both halves, the specs package compiles a nested
// declarative spec into a single pair, and the sqlengine package executes a
// prepared plan with one SQL statement per relationship level.
//
// This package defines the schema registry (models, fields and relationship
// descriptors), the fetched Instance graph, the ordered Mapping output type,
// common sentinel errors and the optional observability interfaces.
//
// Common usage pattern:
//
//	registry, err := readers.BuildSchema().
//		Model(readers.ModelDecl{Name: "widget", Table: "widgets", Fields: readers.Fields("name", "value")}).
//		Model(readers.ModelDecl{Name: "owner", Table: "owners", Fields: readers.Fields("name")}).
//		ForeignKey("widget", "owner", "owner_id", "owner", "widget_set").
//		Finalize()
//
//	widget := registry.MustModel("widget")
//	pair, err := specs.Compile(widget, specs.Spec{"name", map[string]any{"owner": specs.Spec{"name"}}})
//	instances, err := engine.Fetch(ctx, pair.Prepare(qs.From(widget)))
package readers
