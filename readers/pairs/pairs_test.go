package pairs_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/pairs"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
	"github.com/AntonStoeckl/dynamic-readers-go/testutil/fixtures"
)

func assertJSON(t *testing.T, expected string, value any) {
	t.Helper()

	out, err := readers.MarshalMappings(value)
	require.NoError(t, err)
	assert.Equal(t, expected, string(out))
}

func Test_Field_PreparesAndProjectsTheSameField(t *testing.T) {
	// setup
	widget := fixtures.Registry(t).MustModel("widget")
	instance := readers.NewInstance(widget)
	instance.SetValue("name", "test")

	pair := pairs.Field("name", pairs.WithTransform(func(v any) (any, error) {
		return strings.ToUpper(v.(string)), nil
	}))

	// act
	plan := pair.Prepare(qs.From(widget))
	mapping, err := pair.Project(instance)

	// assert
	fields, restricted := plan.Fields()
	assert.True(t, restricted)
	assert.Equal(t, []string{"name"}, fields)
	require.NoError(t, err)
	assertJSON(t, `{"name":"TEST"}`, mapping)
}

func Test_Field_TransformNil(t *testing.T) {
	// setup
	instance := readers.NewInstance(fixtures.Registry(t).MustModel("widget"))
	instance.SetValue("other", nil)
	placeholder := pairs.WithTransform(func(v any) (any, error) {
		if v == nil {
			return "none", nil
		}
		return v, nil
	})

	// act
	skipped, skippedErr := pairs.Field("other", placeholder).Project(instance)
	applied, appliedErr := pairs.Field("other", placeholder, pairs.TransformNil()).Project(instance)

	// assert
	require.NoError(t, skippedErr)
	require.NoError(t, appliedErr)
	assertJSON(t, `{"other":null}`, skipped)
	assertJSON(t, `{"other":"none"}`, applied)
}

func Test_Combine_AccumulatesInclusionAndMergesProjection(t *testing.T) {
	// setup
	widget := fixtures.Registry(t).MustModel("widget")
	instance := readers.NewInstance(widget)
	instance.SetValue("name", "test")
	instance.SetValue("value", int64(2))

	pair := pairs.Combine(pairs.Field("name"), pairs.Alias("amount", pairs.Field("value")), pairs.OrderBy("-value"))

	// act
	plan := pair.Prepare(qs.From(widget))
	mapping, err := pair.Project(instance)

	// assert
	fields, _ := plan.Fields()
	assert.Equal(t, []string{"name", "value"}, fields)
	assert.Equal(t, []qs.Ordering{{Field: "value", Desc: true}}, plan.Orderings())
	require.NoError(t, err)
	assertJSON(t, `{"name":"test","amount":2}`, mapping)
}

func Test_FieldDisplay_ProjectsChoiceLabel(t *testing.T) {
	// setup
	instance := readers.NewInstance(fixtures.Registry(t).MustModel("thing"))
	instance.SetValue("size", "L")

	// act
	mapping, err := pairs.FieldDisplay("size").Project(instance)

	// assert
	require.NoError(t, err)
	assertJSON(t, `{"size_display":"Large"}`, mapping)
}

func Test_ForwardRelationship_PushesChildPreparationOntoRelatedPlan(t *testing.T) {
	// setup
	widget := fixtures.Registry(t).MustModel("widget")
	owner := widget.MustRelationship("owner")

	pair := pairs.ForwardRelationship(owner, pairs.Field("name"), pairs.ToAttr("maker"))

	// act
	plan := pair.Prepare(qs.From(widget))

	// assert
	require.NoError(t, plan.Err())
	prefetches := plan.Prefetches()
	require.Len(t, prefetches, 1)
	assert.Equal(t, "maker", prefetches[0].ToAttr)
	relatedFields, _ := prefetches[0].Plan.Fields()
	assert.Equal(t, []string{"name", "id"}, relatedFields)
}

func Test_Relationship_ProjectsUnderToAttr(t *testing.T) {
	// setup
	registry := fixtures.Registry(t)
	ownerInstance := readers.NewInstance(registry.MustModel("owner"))
	ownerInstance.SetValue("name", "test owner")

	widgetInstance := readers.NewInstance(registry.MustModel("widget"))
	widgetInstance.SetRelated("maker", readers.SingleRelated(ownerInstance))

	rel := registry.MustModel("widget").MustRelationship("owner")

	// act
	mapping, err := pairs.Relationship(rel, pairs.Field("name"), pairs.ToAttr("maker")).Project(widgetInstance)

	// assert
	require.NoError(t, err)
	assertJSON(t, `{"maker":{"name":"test owner"}}`, mapping)
}

func Test_ReverseRelationship_SliceAndTakeFirst(t *testing.T) {
	// setup
	registry := fixtures.Registry(t)
	owner := registry.MustModel("owner")
	widgetSet := owner.MustRelationship("widget_set")

	first := readers.NewInstance(registry.MustModel("widget"))
	first.SetValue("name", "first")
	ownerInstance := readers.NewInstance(owner)
	ownerInstance.SetRelated("latest_widget", readers.CollectionRelated([]*readers.Instance{first}))

	pair := pairs.ReverseRelationship(
		widgetSet,
		pairs.Field("name"),
		pairs.ToAttr("latest_widget"),
		pairs.Prepare(qs.OrderBy("-id")),
		pairs.Slice(0, 1),
		pairs.TakeFirst(),
	)

	// act
	plan := pair.Prepare(qs.From(owner))
	mapping, err := pair.Project(ownerInstance)

	// assert
	prefetches := plan.Prefetches()
	require.Len(t, prefetches, 1)
	bounds, bounded := prefetches[0].Plan.Bounds()
	assert.True(t, bounded)
	assert.Equal(t, qs.Bounds{Offset: 0, Limit: 1}, bounds)
	assert.Equal(t, []qs.Ordering{{Field: "id", Desc: true}}, prefetches[0].Plan.Orderings())

	require.NoError(t, err)
	assertJSON(t, `{"latest_widget":{"name":"first"}}`, mapping)
}

func Test_AutoRelationship_UnknownNameFails(t *testing.T) {
	// act
	_, err := pairs.AutoRelationship(fixtures.Registry(t).MustModel("widget"), "gadgets", pairs.Field("name"))

	// assert
	assert.ErrorIs(t, err, readers.ErrRelationshipMetadata)
}

func Test_PKList_ProjectsRelatedKeys(t *testing.T) {
	// setup
	registry := fixtures.Registry(t)
	category := registry.MustModel("category")
	widgetSet := category.MustRelationship("widget_set")

	a := readers.NewInstance(registry.MustModel("widget"))
	a.SetValue("pk", int64(1))
	b := readers.NewInstance(registry.MustModel("widget"))
	b.SetValue("pk", int64(2))
	instance := readers.NewInstance(category)
	instance.SetRelated("widget_set", readers.CollectionRelated([]*readers.Instance{a, b}))

	// act
	pair := pairs.PKList(widgetSet)
	plan := pair.Prepare(qs.From(category))
	mapping, err := pair.Project(instance)

	// assert
	require.NoError(t, err)
	assertJSON(t, `{"widget_set":[1,2]}`, mapping)
	relatedFields, _ := plan.Prefetches()[0].Plan.Fields()
	assert.Equal(t, []string{"id"}, relatedFields)
}

func Test_CountAndHas(t *testing.T) {
	// setup
	owner := fixtures.Registry(t).MustModel("owner")
	widgetSet := owner.MustRelationship("widget_set")

	instance := readers.NewInstance(owner)
	instance.SetValue("widget_set_count", int64(0))

	pair := pairs.Combine(pairs.Count(widgetSet, true), pairs.Has(widgetSet))

	// act
	plan := pair.Prepare(qs.From(owner))
	mapping, err := pair.Project(instance)

	// assert
	assert.Len(t, plan.Annotations(), 1)
	require.NoError(t, err)
	assertJSON(t, `{"widget_set_count":0,"has_widget_set":false}`, mapping)
}

func Test_PrepareOnlyAndProjectOnly(t *testing.T) {
	// setup
	widget := fixtures.Registry(t).MustModel("widget")
	instance := readers.NewInstance(widget)
	instance.SetValue("name", "test")

	prepareOnly := pairs.PrepareOnly(qs.IncludeFields("value"))
	projectOnly := pairs.ProjectOnly(func(i *readers.Instance) (readers.Mapping, error) {
		return readers.MappingOf("constant", 42), nil
	})

	// act
	plan := pairs.Combine(prepareOnly, projectOnly).Prepare(qs.From(widget))
	mapping, err := pairs.Combine(prepareOnly, projectOnly).Project(instance)

	// assert
	fields, _ := plan.Fields()
	assert.Equal(t, []string{"value"}, fields)
	require.NoError(t, err)
	assertJSON(t, `{"constant":42}`, mapping)
}
