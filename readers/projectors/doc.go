// Package projectors builds functions that turn a fetched readers.Instance into an ordered readers.Mapping.
//
// A Producer computes one value. A Projector emits a whole mapping and is what the pairs and
// specs packages compose. Wrap bridges the two; Combine and Alias reshape projector output.
// Relationship projections never touch the database: they read what the query plan prefetched.
package projectors
