// Package qs provides the immutable QueryPlan and composable transformations over it.
//
// A Func never mutates its input. Inclusion is a union: applying IncludeFields twice
// loads the fields of both calls, which is what lets independent pairs be combined.
//
//	prepare := qs.Pipe(
//		qs.IncludeFields("name"),
//		qs.Filter(goqu.Ex{"value": goqu.Op{"gt": 0}}),
//		qs.OrderBy("-value"),
//		qs.AutoPrefetch(widget.MustRelationship("owner"), qs.IncludeFields("name"), "owner"),
//	)
//	plan := prepare(qs.From(widget))
package qs
