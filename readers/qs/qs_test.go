package qs_test

import (
	"testing"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
	"github.com/AntonStoeckl/dynamic-readers-go/testutil/fixtures"
)

func Test_IncludeFields_IsAUnionAcrossCalls(t *testing.T) {
	// setup
	widget := fixtures.Registry(t).MustModel("widget")

	// act
	plan := qs.Pipe(
		qs.IncludeFields("name"),
		qs.IncludeFields("value", "name"),
		qs.IncludeFields("pk"),
	)(qs.From(widget))

	// assert
	fields, restricted := plan.Fields()
	assert.True(t, restricted)
	assert.Equal(t, []string{"name", "value", "id"}, fields)
}

func Test_From_IsUnrestricted(t *testing.T) {
	// act
	fields, restricted := qs.From(fixtures.Registry(t).MustModel("widget")).Fields()

	// assert
	assert.False(t, restricted)
	assert.Empty(t, fields)
}

func Test_Transforms_DoNotMutateTheirInput(t *testing.T) {
	// setup
	base := qs.From(fixtures.Registry(t).MustModel("widget")).Include("name")

	// act
	_ = qs.Pipe(
		qs.IncludeFields("value"),
		qs.Filter(goqu.Ex{"value": 1}),
		qs.OrderBy("-value"),
		qs.Bound(0, 1),
		qs.Distinct(),
	)(base)

	// assert
	fields, _ := base.Fields()
	assert.Equal(t, []string{"name"}, fields)
	assert.Empty(t, base.Filters())
	assert.Empty(t, base.Orderings())
	assert.False(t, base.IsDistinct())
	_, bounded := base.Bounds()
	assert.False(t, bounded)
}

func Test_Noop_AndEmptyPipe_ReturnThePlanUnchanged(t *testing.T) {
	// setup
	base := qs.From(fixtures.Registry(t).MustModel("widget")).Include("name")

	// act
	viaNoop := qs.Noop(base)
	viaPipe := qs.Pipe()(base)

	// assert
	assert.Equal(t, base, viaNoop)
	assert.Equal(t, base, viaPipe)
}

func Test_OrderBy_ParsesDescendingPrefix(t *testing.T) {
	// act
	plan := qs.OrderBy("-value", "name")(qs.From(fixtures.Registry(t).MustModel("widget")))

	// assert
	assert.Equal(t, []qs.Ordering{{Field: "value", Desc: true}, {Field: "name"}}, plan.Orderings())
}

func Test_PrefetchForward_IncludesReferenceAndRelatedPK(t *testing.T) {
	// setup
	widget := fixtures.Registry(t).MustModel("widget")
	owner := widget.MustRelationship("owner")

	// act
	plan := qs.PrefetchForward(owner, qs.From(owner.RelatedModel).Include("name"), "")(qs.From(widget))

	// assert
	require.NoError(t, plan.Err())
	fields, _ := plan.Fields()
	assert.Equal(t, []string{"owner"}, fields)

	prefetches := plan.Prefetches()
	require.Len(t, prefetches, 1)
	assert.Equal(t, "owner", prefetches[0].ToAttr)
	relatedFields, _ := prefetches[0].Plan.Fields()
	assert.Equal(t, []string{"name", "id"}, relatedFields)
}

func Test_PrefetchReverse_IncludesPKAndBackReference(t *testing.T) {
	// setup
	owner := fixtures.Registry(t).MustModel("owner")
	widgetSet := owner.MustRelationship("widget_set")

	// act
	plan := qs.PrefetchReverse(widgetSet, qs.From(widgetSet.RelatedModel).Include("name"), "widgets")(qs.From(owner))

	// assert
	require.NoError(t, plan.Err())
	fields, _ := plan.Fields()
	assert.Equal(t, []string{"id"}, fields)

	prefetches := plan.Prefetches()
	require.Len(t, prefetches, 1)
	assert.Equal(t, "widgets", prefetches[0].ToAttr)
	relatedFields, _ := prefetches[0].Plan.Fields()
	assert.Equal(t, []string{"name", "owner"}, relatedFields)
}

func Test_AutoPrefetch_SelectsStrategyByKind(t *testing.T) {
	// setup
	registry := fixtures.Registry(t)
	category := registry.MustModel("category")
	widgetSet := category.MustRelationship("widget_set")

	// act
	plan := qs.AutoPrefetch(widgetSet, qs.IncludeFields("name"), "")(qs.From(category))

	// assert
	require.NoError(t, plan.Err())
	fields, _ := plan.Fields()
	assert.Equal(t, []string{"id"}, fields)

	prefetches := plan.Prefetches()
	require.Len(t, prefetches, 1)
	assert.Equal(t, readers.ManyToMany, prefetches[0].Relationship.Kind)
	relatedFields, _ := prefetches[0].Plan.Fields()
	assert.Equal(t, []string{"name", "id"}, relatedFields)
}

func Test_Prefetch_MisuseIsRecordedOnThePlan(t *testing.T) {
	// setup
	registry := fixtures.Registry(t)
	widget := registry.MustModel("widget")
	owner := registry.MustModel("owner")
	widgetSet := owner.MustRelationship("widget_set")

	tests := []struct {
		name string
		fn   qs.Func
	}{
		{name: "relationship of another model", fn: qs.AutoPrefetch(widgetSet, nil, "")},
		{name: "wrong strategy for kind", fn: qs.PrefetchForward(widget.MustRelationship("category_set"), qs.From(registry.MustModel("category")), "")},
		{name: "zero descriptor", fn: qs.AutoPrefetch(readers.RelationshipDescriptor{Name: "ghost"}, nil, "")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			plan := tc.fn(qs.From(widget))

			// assert
			assert.ErrorIs(t, plan.Err(), readers.ErrRelationshipMetadata)
			assert.Empty(t, plan.Prefetches())
		})
	}
}

func Test_IncludeCount_ReplacesAnnotationsWithTheSameAlias(t *testing.T) {
	// setup
	owner := fixtures.Registry(t).MustModel("owner")
	widgetSet := owner.MustRelationship("widget_set")

	// act
	plan := qs.Pipe(
		qs.IncludeCount("widget_set_count", widgetSet, false),
		qs.IncludeCount("widget_set_count", widgetSet, true),
	)(qs.From(owner))

	// assert
	annotations := plan.Annotations()
	require.Len(t, annotations, 1)
	assert.True(t, annotations[0].Distinct)
	fields, _ := plan.Fields()
	assert.Equal(t, []string{"id"}, fields)
}

func Test_Exclude_WrapsExpressionsInNot(t *testing.T) {
	// setup
	widget := fixtures.Registry(t).MustModel("widget")

	// act
	plan := qs.Exclude(goqu.Ex{"name": "hidden"})(qs.From(widget))
	unchanged := qs.Exclude()(qs.From(widget))

	// assert
	require.Len(t, plan.Filters(), 1)
	sql, _, err := goqu.Dialect("postgres").From("widgets").Where(plan.Filters()...).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `NOT(("name" = 'hidden'))`)
	assert.Empty(t, unchanged.Filters())
}

func Test_WithPrefetch_MergesTheSameRelationshipInOneSlot(t *testing.T) {
	// setup
	owner := fixtures.Registry(t).MustModel("owner")
	widgetSet := owner.MustRelationship("widget_set")
	thing := widgetSet.RelatedModel.MustRelationship("thing")

	// act
	plan := qs.Pipe(
		qs.AutoPrefetch(widgetSet, qs.IncludeFields("name"), ""),
		qs.AutoPrefetch(widgetSet, qs.Pipe(
			qs.IncludeFields("value"),
			qs.AutoPrefetch(thing, qs.IncludeFields("name"), ""),
		), ""),
		qs.AutoPrefetch(widgetSet, qs.AutoPrefetch(thing, qs.IncludeFields("size"), ""), ""),
	)(qs.From(owner))

	// assert
	require.NoError(t, plan.Err())
	prefetches := plan.Prefetches()
	require.Len(t, prefetches, 1)
	assert.Equal(t, "widget_set", prefetches[0].ToAttr)

	relatedFields, restricted := prefetches[0].Plan.Fields()
	assert.True(t, restricted)
	assert.Equal(t, []string{"name", "owner", "value", "id"}, relatedFields)

	nested := prefetches[0].Plan.Prefetches()
	require.Len(t, nested, 1)
	nestedFields, _ := nested[0].Plan.Fields()
	assert.Equal(t, []string{"name", "widget", "size"}, nestedFields)
}

func Test_WithPrefetch_ApplyingAPreparationTwiceIsIdempotent(t *testing.T) {
	// setup
	owner := fixtures.Registry(t).MustModel("owner")
	widgetSet := owner.MustRelationship("widget_set")
	prepare := qs.Pipe(
		qs.IncludeFields("name"),
		qs.AutoPrefetch(widgetSet, qs.Pipe(qs.IncludeFields("name"), qs.OrderBy("-value")), ""),
	)

	// act
	once := prepare(qs.From(owner))
	twice := prepare(prepare(qs.From(owner)))

	// assert
	require.NoError(t, twice.Err())
	require.Len(t, twice.Prefetches(), len(once.Prefetches()))

	onceFields, _ := once.Prefetches()[0].Plan.Fields()
	twiceFields, _ := twice.Prefetches()[0].Plan.Fields()
	assert.Equal(t, onceFields, twiceFields)
	assert.Equal(t, once.Prefetches()[0].Plan.Orderings(), twice.Prefetches()[0].Plan.Orderings())
}

func Test_WithPrefetch_ConflictingSlotIsRecordedOnThePlan(t *testing.T) {
	// setup
	owner := fixtures.Registry(t).MustModel("owner")
	widgetSet := owner.MustRelationship("widget_set")
	group := owner.MustRelationship("group")

	tests := []struct {
		name   string
		second qs.Func
	}{
		{
			name:   "other relationship in the slot",
			second: qs.AutoPrefetch(widgetSet, qs.IncludeFields("name"), "group"),
		},
		{
			name:   "same relationship with other ordering",
			second: qs.AutoPrefetch(group, qs.OrderBy("-name"), ""),
		},
		{
			name:   "same relationship with other filters",
			second: qs.AutoPrefetch(group, qs.Filter(goqu.C("name").Eq("admins")), ""),
		},
		{
			name:   "same relationship with other bounds",
			second: qs.AutoPrefetch(group, qs.Bound(0, 1), ""),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			plan := qs.AutoPrefetch(group, qs.IncludeFields("name"), "")(qs.From(owner))

			// act
			plan = tc.second(plan)

			// assert
			assert.ErrorIs(t, plan.Err(), readers.ErrRelationshipMetadata)
			require.Len(t, plan.Prefetches(), 1)
			assert.Equal(t, "group", plan.Prefetches()[0].Relationship.Name)
		})
	}
}
