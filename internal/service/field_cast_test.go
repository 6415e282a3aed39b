package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

func TestCastValue(t *testing.T) {
	intField := models.FieldSpec{Name: "rating", Kind: models.FieldKindSimple, Type: models.TypeInt}
	dateField := models.FieldSpec{Name: "published_on", Kind: models.FieldKindSimple, Type: models.TypeDate}
	textField := models.FieldSpec{Name: "title", Kind: models.FieldKindSimple, Type: models.TypeString}
	boolField := models.FieldSpec{Name: "pinned", Kind: models.FieldKindBool}
	uuidField := models.FieldSpec{Name: "token", Kind: models.FieldKindSimple, Type: models.TypeUUID}
	emailField := models.FieldSpec{Name: "email", Kind: models.FieldKindSimple, Type: models.TypeEmail}
	jsonField := models.FieldSpec{Name: "extra", Kind: models.FieldKindSimple, Type: models.TypeJSON}

	tests := []struct {
		name  string
		field models.FieldSpec
		raw   interface{}
		want  interface{}
	}{
		{name: "int with leading zero is decimal", field: intField, raw: "08", want: int64(8)},
		{name: "int trims spaces", field: intField, raw: " 42 ", want: int64(42)},
		{name: "blank int is nil", field: intField, raw: "  ", want: nil},
		{name: "blank text stays text", field: textField, raw: "", want: ""},
		{name: "bool kind parses words", field: boolField, raw: "off", want: false},
		{name: "bool keeps native", field: boolField, raw: true, want: true},
		{name: "date drops time", field: dateField, raw: "2024-03-09", want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{name: "uuid is normalised", field: uuidField, raw: "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", want: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{name: "email is trimmed", field: emailField, raw: " alice@example.com ", want: "alice@example.com"},
		{name: "json string is decoded", field: jsonField, raw: `{"a":1}`, want: map[string]interface{}{"a": float64(1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := castValue(tc.field, tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCastValueRejectsBadInput(t *testing.T) {
	intField := models.FieldSpec{Name: "rating", Kind: models.FieldKindSimple, Type: models.TypeInt}
	_, err := castValue(intField, "many")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCast)
	assert.Contains(t, err.Error(), "cannot convert 'many' to int for field 'rating'")

	boolField := models.FieldSpec{Name: "pinned", Kind: models.FieldKindBool}
	_, err = castValue(boolField, "maybe")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	emailField := models.FieldSpec{Name: "email", Kind: models.FieldKindSimple, Type: models.TypeEmail}
	_, err = castValue(emailField, "not-an-address")
	assert.ErrorIs(t, err, appErrors.ErrCast)

	odd := models.FieldSpec{Name: "blob", Kind: models.FieldKindSimple, Type: "binary"}
	_, err = castValue(odd, "x")
	assert.ErrorIs(t, err, appErrors.ErrUnsupportedFieldType)
}

func TestNormalizeChoice(t *testing.T) {
	rating := models.FieldSpec{Name: "rating", Kind: models.FieldKindSimple, Type: models.TypeInt, Choices: []models.Choice{
		{Value: "1", Label: "Poor"}, {Value: "2", Label: "Fair"}, {Value: "3", Label: "Good"},
	}}

	got, err := normalizeChoice(rating, "good")
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	got, err = normalizeChoice(rating, int64(2))
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	got, err = normalizeChoice(rating, "")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = normalizeChoice(rating, "excellent")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidChoice)
	assert.Equal(t, "'excellent' is not a valid choice for 'rating'", err.Error())
}

func TestParseBool(t *testing.T) {
	for _, raw := range []string{"true", "1", "YES", "on"} {
		got, err := parseBool(raw)
		require.NoError(t, err, raw)
		assert.True(t, got, raw)
	}
	for _, raw := range []string{"false", "0", "No", " off "} {
		got, err := parseBool(raw)
		require.NoError(t, err, raw)
		assert.False(t, got, raw)
	}
	_, err := parseBool("sometimes")
	assert.Error(t, err)
}
