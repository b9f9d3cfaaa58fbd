// Package fixtures provides the widget test schema, an SQLite database carrying its tables,
// and Given* helpers that insert rows.
//
// Models: group <- owner <- widget <- thing (one-to-one), and category <-> widget (many-to-many).
package fixtures
