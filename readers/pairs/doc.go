// Package pairs bundles a query preparation with the projection that consumes its result.
//
// Pairs compose with Combine: preparations run in order against the same plan, so the
// inclusion sets accumulate, and projections merge in order. Relationship pairs push the
// child pair's preparation onto the related plan and nest its projection under the
// relationship's key.
//
//	owner := widget.MustRelationship("owner")
//	pair := pairs.Combine(
//		pairs.Field("name"),
//		pairs.ForwardRelationship(owner, pairs.Field("name")),
//	)
package pairs
