package fswrite

import (
	"testing"

	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAttachesExistsFalsePrecondition(t *testing.T) {
	op, err := Create("projects/p/databases/(default)/documents/cities/SF", map[string]Input{
		"name": PlainValue(fsvalue.String("San Francisco")),
	})
	require.NoError(t, err)
	w := Encode(op, op.DocumentPath)
	require.NotNil(t, w.GetCurrentDocument())
	assert.False(t, w.GetCurrentDocument().GetExists())
	assert.Nil(t, w.GetUpdateMask())
}

func TestSetMergeDerivesMaskFromAllInputKeys(t *testing.T) {
	op, err := SetMerge("doc", map[string]Input{
		"foo": PlainValue(fsvalue.String("bar")),
		"baz": PlainValue(fsvalue.String("qux")),
	})
	require.NoError(t, err)
	w := Encode(op, "doc")
	require.NotNil(t, w.GetUpdateMask())
	assert.ElementsMatch(t, []string{"foo", "baz"}, w.GetUpdateMask().GetFieldPaths())
	assert.Nil(t, w.GetCurrentDocument())
}

func TestSetMergeFieldsDropsUnlistedKeys(t *testing.T) {
	op, err := SetMergeFields("doc", map[string]Input{
		"foo": PlainValue(fsvalue.String("bar")),
		"baz": PlainValue(fsvalue.String("qux")),
	}, []string{"baz"})
	require.NoError(t, err)
	w := Encode(op, "doc")
	assert.Equal(t, []string{"baz"}, w.GetUpdateMask().GetFieldPaths())
	fields := w.GetUpdate().GetFields()
	_, hasFoo := fields["foo"]
	_, hasBaz := fields["baz"]
	assert.False(t, hasFoo)
	assert.True(t, hasBaz)
}

func TestUpdateDefaultsToExistsTruePrecondition(t *testing.T) {
	op, err := Update("doc", map[string]Input{"v": PlainValue(fsvalue.Int64(1))}, NoPrecondition)
	require.NoError(t, err)
	w := Encode(op, "doc")
	require.NotNil(t, w.GetCurrentDocument())
	assert.True(t, w.GetCurrentDocument().GetExists())
}

func TestDeleteFieldSentinelStaysInMaskNotInFields(t *testing.T) {
	op, err := Update("doc", map[string]Input{
		"keep":   PlainValue(fsvalue.Int64(1)),
		"remove": TransformValue(fsvalue.DeleteField()),
	}, NoPrecondition)
	require.NoError(t, err)
	w := Encode(op, "doc")
	assert.ElementsMatch(t, []string{"keep", "remove"}, w.GetUpdateMask().GetFieldPaths())
	fields := w.GetUpdate().GetFields()
	_, hasRemove := fields["remove"]
	assert.False(t, hasRemove)
}

func TestTransformFieldsProduceUpdateTransforms(t *testing.T) {
	op, err := Update("doc", map[string]Input{
		"ts": TransformValue(fsvalue.ServerTimestamp()),
	}, NoPrecondition)
	require.NoError(t, err)
	w := Encode(op, "doc")
	require.Len(t, w.GetUpdateTransforms(), 1)
	assert.Equal(t, "ts", w.GetUpdateTransforms()[0].GetFieldPath())
}

func TestCreateRejectsDeleteFieldSentinel(t *testing.T) {
	_, err := Create("doc", map[string]Input{
		"x": TransformValue(fsvalue.DeleteField()),
	})
	require.Error(t, err)
}

func TestSetReplaceRejectsDeleteFieldSentinel(t *testing.T) {
	_, err := SetReplace("doc", map[string]Input{
		"x": TransformValue(fsvalue.DeleteField()),
	})
	require.Error(t, err)
}

func TestDottedPathsNestIntoDocumentBody(t *testing.T) {
	op, err := Update("doc", map[string]Input{
		"address.city": PlainValue(fsvalue.String("SF")),
		"address.zip":  PlainValue(fsvalue.String("94107")),
		"name":         PlainValue(fsvalue.String("HQ")),
	}, NoPrecondition)
	require.NoError(t, err)
	w := Encode(op, "doc")

	// The mask keeps the dotted form.
	assert.ElementsMatch(t, []string{"address.city", "address.zip", "name"}, w.GetUpdateMask().GetFieldPaths())

	// The document body is re-nested: no top-level key contains a dot.
	fields := w.GetUpdate().GetFields()
	_, hasDotted := fields["address.city"]
	assert.False(t, hasDotted)
	addr := fields["address"].GetMapValue().GetFields()
	require.NotNil(t, addr)
	assert.Equal(t, "SF", addr["city"].GetStringValue())
	assert.Equal(t, "94107", addr["zip"].GetStringValue())
	assert.Equal(t, "HQ", fields["name"].GetStringValue())
}

func TestNestedTransformKeepsDottedWirePath(t *testing.T) {
	op, err := Update("doc", map[string]Input{
		"stats.visits": TransformValue(fsvalue.Increment(fsvalue.Int64(1))),
	}, NoPrecondition)
	require.NoError(t, err)
	w := Encode(op, "doc")
	require.Len(t, w.GetUpdateTransforms(), 1)
	assert.Equal(t, "stats.visits", w.GetUpdateTransforms()[0].GetFieldPath())
	assert.Empty(t, w.GetUpdate().GetFields())
}

func TestOverlappingFieldPathsRejected(t *testing.T) {
	_, err := Update("doc", map[string]Input{
		"address":      PlainValue(fsvalue.String("whole")),
		"address.city": PlainValue(fsvalue.String("SF")),
	}, NoPrecondition)
	require.Error(t, err)
}

func TestDeleteHasNoFields(t *testing.T) {
	op := Delete("doc", NoPrecondition)
	w := Encode(op, "doc")
	assert.Equal(t, "doc", w.GetDelete())
	assert.Nil(t, w.GetCurrentDocument())
}
