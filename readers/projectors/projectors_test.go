package projectors_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/projectors"
	"github.com/AntonStoeckl/dynamic-readers-go/testutil/fixtures"
)

func givenWidget(t *testing.T) *readers.Instance {
	t.Helper()

	registry := fixtures.Registry(t)

	owner := readers.NewInstance(registry.MustModel("owner"))
	owner.SetValue("pk", int64(1))
	owner.SetValue("name", "test owner")

	widget := readers.NewInstance(registry.MustModel("widget"))
	widget.SetValue("pk", int64(10))
	widget.SetValue("name", "test")
	widget.SetValue("value", int64(3))
	widget.SetValue("other", nil)
	widget.SetValue("owner", int64(1))
	widget.SetRelated("owner", readers.SingleRelated(owner))

	first := readers.NewInstance(registry.MustModel("category"))
	first.SetValue("pk", int64(100))
	first.SetValue("name", "first")

	second := readers.NewInstance(registry.MustModel("category"))
	second.SetValue("pk", int64(101))
	second.SetValue("name", "second")

	widget.SetRelated("category_set", readers.CollectionRelated([]*readers.Instance{first, second}))

	return widget
}

func assertJSON(t *testing.T, expected string, value any) {
	t.Helper()

	out, err := readers.MarshalMappings(value)
	require.NoError(t, err)
	assert.Equal(t, expected, string(out))
}

func Test_Field_ProjectsASingleKey(t *testing.T) {
	// act
	mapping, err := projectors.Field("name")(givenWidget(t))

	// assert
	require.NoError(t, err)
	assertJSON(t, `{"name":"test"}`, mapping)
}

func Test_Combine_MergesInOrder(t *testing.T) {
	// setup
	project := projectors.Combine(
		projectors.Field("name"),
		projectors.Field("value"),
		projectors.Field("other"),
		projectors.Field("name"),
	)

	// act
	mapping, err := project(givenWidget(t))

	// assert
	require.NoError(t, err)
	assertJSON(t, `{"name":"test","value":3,"other":null}`, mapping)
}

func Test_Combine_RejectsANilMapping(t *testing.T) {
	// setup
	broken := func(*readers.Instance) (readers.Mapping, error) { return nil, nil }

	// act
	_, err := projectors.Combine(projectors.Field("name"), broken)(givenWidget(t))

	// assert
	assert.ErrorIs(t, err, readers.ErrProjectionShape)
}

func Test_Combine_Empty_ProjectsEmptyMapping(t *testing.T) {
	// act
	mapping, err := projectors.Combine()(givenWidget(t))

	// assert
	require.NoError(t, err)
	assertJSON(t, `{}`, mapping)
}

func Test_Alias(t *testing.T) {
	// setup
	widget := givenWidget(t)

	// act
	aliased, aliasErr := projectors.Alias("title", projectors.Field("name"))(widget)
	_, arityErr := projectors.Alias("title", projectors.Combine(projectors.Field("name"), projectors.Field("value")))(widget)
	_, emptyErr := projectors.Alias("title", projectors.Noop)(widget)

	// assert
	require.NoError(t, aliasErr)
	assertJSON(t, `{"title":"test"}`, aliased)
	assert.ErrorIs(t, arityErr, readers.ErrAliasArity)
	assert.ErrorIs(t, emptyErr, readers.ErrAliasArity)
}

func Test_AliasKeys_RenamesInPlace(t *testing.T) {
	// setup
	project := projectors.AliasKeys(
		map[string]string{"name": "title", "missing": "ignored"},
		projectors.Combine(projectors.Field("value"), projectors.Field("name"), projectors.Field("other")),
	)

	// act
	mapping, err := project(givenWidget(t))

	// assert
	require.NoError(t, err)
	assertJSON(t, `{"value":3,"title":"test","other":null}`, mapping)
}

func Test_MapOrApply(t *testing.T) {
	// setup
	widget := givenWidget(t)
	project := projectors.Field("name")

	// act
	absent, absentErr := projectors.MapOrApply(readers.AbsentRelated(), project)
	single, singleErr := projectors.MapOrApply(readers.SingleRelated(widget), project)
	empty, emptyErr := projectors.MapOrApply(readers.CollectionRelated(nil), project)

	// assert
	require.NoError(t, errors.Join(absentErr, singleErr, emptyErr))
	assert.Nil(t, absent)
	assertJSON(t, `{"name":"test"}`, single)
	assert.Equal(t, []readers.Mapping{}, empty)
	assertJSON(t, `[]`, empty)
}

func Test_Relationship_ProjectsPrefetchedInstances(t *testing.T) {
	// setup
	project := projectors.Combine(
		projectors.Field("name"),
		projectors.Wrap("owner", projectors.Relationship("owner", projectors.Field("name"))),
		projectors.Wrap("category_set", projectors.Relationship("category_set", projectors.Field("name"))),
	)

	// act
	mapping, err := project(givenWidget(t))

	// assert
	require.NoError(t, err)
	assertJSON(t, `{"name":"test","owner":{"name":"test owner"},"category_set":[{"name":"first"},{"name":"second"}]}`, mapping)
}

func Test_Relationship_NotPrefetchedFails(t *testing.T) {
	// act
	_, err := projectors.Relationship("thing", projectors.Field("name"))(givenWidget(t))

	// assert
	assert.ErrorIs(t, err, readers.ErrRelationshipNotLoaded)
}

func Test_First_CollapsesCollections(t *testing.T) {
	// setup
	widget := givenWidget(t)
	widget.SetRelated("thing", readers.CollectionRelated(nil))

	// act
	first, firstErr := projectors.First(projectors.Relationship("category_set", projectors.Field("name")))(widget)
	none, noneErr := projectors.First(projectors.Relationship("thing", projectors.Field("name")))(widget)

	// assert
	require.NoError(t, errors.Join(firstErr, noneErr))
	assertJSON(t, `{"name":"first"}`, first)
	assert.Nil(t, none)
}

func Test_Transform(t *testing.T) {
	// setup
	widget := givenWidget(t)
	upper := func(value any) (any, error) { return strings.ToUpper(value.(string)), nil }
	placeholder := func(value any) (any, error) {
		if value == nil {
			return "n/a", nil
		}
		return value, nil
	}

	// act
	name, nameErr := projectors.Transform(projectors.Attr("name"), upper, false)(widget)
	skipped, skippedErr := projectors.Transform(projectors.Attr("other"), upper, false)(widget)
	replaced, replacedErr := projectors.Transform(projectors.Attr("other"), placeholder, true)(widget)

	// assert
	require.NoError(t, errors.Join(nameErr, skippedErr, replacedErr))
	assert.Equal(t, "TEST", name)
	assert.Nil(t, skipped)
	assert.Equal(t, "n/a", replaced)
}

func Test_Values_CollectsRelatedFields(t *testing.T) {
	// setup
	widget := givenWidget(t)

	// act
	names, namesErr := projectors.Values("category_set", "name")(widget)
	ownerPK, ownerErr := projectors.Values("owner", "pk")(widget)

	// assert
	require.NoError(t, errors.Join(namesErr, ownerErr))
	assert.Equal(t, []any{"first", "second"}, names)
	assert.Equal(t, int64(1), ownerPK)
}

func Test_Truthy(t *testing.T) {
	// setup
	widget := givenWidget(t)

	// act
	hasValue, valueErr := projectors.Truthy(projectors.Attr("value"))(widget)
	hasOther, otherErr := projectors.Truthy(projectors.Attr("other"))(widget)

	// assert
	require.NoError(t, errors.Join(valueErr, otherErr))
	assert.Equal(t, true, hasValue)
	assert.Equal(t, false, hasOther)
}
