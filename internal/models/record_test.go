package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRelations(t *testing.T) {
	rec := &Record{Schema: "comment"}
	assert.Nil(t, rec.Get("title"))
	assert.Nil(t, rec.Get(FieldID))

	rec.AddRelated("tags", 5)
	rec.AddRelated("tags", 2)
	rec.AddRelated("tags", 5)
	assert.Equal(t, []int64{2, 5}, rec.RelatedIDs("tags"))
	assert.True(t, rec.HasRelated("tags", 2))

	rec.RemoveRelated("tags", 2)
	assert.Equal(t, []int64{5}, rec.RelatedIDs("tags"))
	rec.RemoveRelated("missing", 1)
	assert.Empty(t, rec.RelatedIDs("missing"))
}

func TestRecordRef(t *testing.T) {
	rec := NewRecord("comment")
	_, ok := rec.Ref("category")
	assert.False(t, ok)

	rec.Set("category", "12")
	id, ok := rec.Ref("category")
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	rec.Set("category", 0)
	_, ok = rec.Ref("category")
	assert.False(t, ok)

	rec.Set("category", "abc")
	_, ok = rec.Ref("category")
	assert.False(t, ok)
}

func TestRecordCloneIsDeep(t *testing.T) {
	rec := NewRecord("comment")
	rec.ID = 3
	rec.Set("meta", map[string]interface{}{"k": []interface{}{"a"}})
	rec.AddRelated("tags", 1)

	clone := rec.Clone()
	clone.Values["meta"].(map[string]interface{})["k"].([]interface{})[0] = "b"
	clone.AddRelated("tags", 2)

	assert.Equal(t, "a", rec.Values["meta"].(map[string]interface{})["k"].([]interface{})[0])
	assert.Equal(t, []int64{1}, rec.RelatedIDs("tags"))
	assert.Equal(t, int64(3), rec.Get(FieldID))

	var none *Record
	assert.Nil(t, none.Clone())
}

func TestFormatValue(t *testing.T) {
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "true"},
		{int64(42), "42"},
		{1.5, "1.5"},
		{day, "2024-03-09"},
		{day.Add(90 * time.Minute), "2024-03-09T01:30:00Z"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatValue(tc.in))
	}
}

func TestSchemaHelpers(t *testing.T) {
	schema := &Schema{
		Name: "category",
		App:  "Blog",
		Fields: append(BaseFields("user"),
			FieldSpec{Name: FieldName, Kind: FieldKindSimple, Type: TypeString},
			FieldSpec{Name: FieldParent, Kind: FieldKindForeignKey, Related: "category"},
			FieldSpec{Name: "rank", Kind: FieldKindSimple, Type: TypeInt},
		),
		DisallowAccessFields: BaseDisallowedFields,
	}
	require.NoError(t, schema.Validate())
	assert.Equal(t, "blog.category", schema.QualifiedName())
	assert.Equal(t, "categorys", schema.PluralName())
	assert.True(t, schema.HasSelfParent())
	assert.True(t, schema.HasField(FieldID))
	assert.True(t, schema.Disallowed(FieldSlug))
	assert.Equal(t, FieldName, schema.DisplayFieldName())
	require.Len(t, schema.TextFields(), 2)
	assert.Equal(t, FieldStatus, schema.TextFields()[0].Name)

	status, _ := schema.Field(FieldStatus)
	assert.Equal(t, "Published", status.Label(StatusPublished))
	assert.Equal(t, "z", status.Label("z"))

	schema.Plural = "Categories"
	assert.Equal(t, "categories", schema.PluralName())
}

func TestSchemaValidateRejects(t *testing.T) {
	cases := map[string]*Schema{
		"empty name":    {},
		"upper":         {Name: "Tag"},
		"duplicate":     {Name: "tag", Fields: []FieldSpec{{Name: "a", Kind: FieldKindBool}, {Name: "a", Kind: FieldKindBool}}},
		"id shadowed":   {Name: "tag", Fields: []FieldSpec{{Name: FieldID, Kind: FieldKindBool}}},
		"bad kind":      {Name: "tag", Fields: []FieldSpec{{Name: "a"}}},
		"no related":    {Name: "tag", Fields: []FieldSpec{{Name: "a", Kind: FieldKindManyRelation}}},
		"untyped":       {Name: "tag", Fields: []FieldSpec{{Name: "a", Kind: FieldKindSimple}}},
		"unnamed field": {Name: "tag", Fields: []FieldSpec{{Kind: FieldKindBool}}},
	}
	for name, schema := range cases {
		assert.Error(t, schema.Validate(), name)
	}
	assert.Equal(t, "FieldKind(9)", FieldKind(9).String())
}

func TestChangeString(t *testing.T) {
	assert.Equal(t, "changed field 'title' from 'a' to 'b'", Change{Field: "title", OldValue: "a", NewValue: "b"}.String())
	assert.Equal(t, "added 'go' to 'tags'", Change{Field: "tags", Description: "added 'go' to 'tags'"}.String())
}
