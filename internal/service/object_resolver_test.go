package service

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

func TestObjectIdentifiers(t *testing.T) {
	w := newWorld(t)
	resolver := NewObjectResolver(w.filter(), nil)
	category := w.schema("category")

	ids, err := resolver.Identifiers(w.session(&RequestContext{}), category)
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = resolver.Identifiers(w.session(&RequestContext{Query: url.Values{"object_id": {"3"}}}), category)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	s := w.session(&RequestContext{
		Kwargs: map[string]string{"object_id": "3"},
		Query:  url.Values{"obj-slug": {" books "}, "object_token": {"abc"}},
	})
	ids, err = resolver.Identifiers(s, category)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "3", "slug": "books"}, ids)

	device := &models.Schema{Name: "device", Fields: []models.FieldSpec{
		{Name: models.FieldToken, Kind: models.FieldKindSimple, Type: models.TypeString},
	}}
	s = w.session(&RequestContext{Query: url.Values{"object_id": {"3"}, "object_slug": {"abc"}}})
	ids, err = resolver.Identifiers(s, device)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "3", "token": "abc"}, ids)
}

func TestObjectResolve(t *testing.T) {
	w := newWorld(t)
	books := w.add("category", map[string]interface{}{"name": "Books", "slug": "books", "visibility": models.VisibilityPublic})
	secret := w.add("category", map[string]interface{}{"name": "Secret", "slug": "secret", "user": w.users["bob"].ID, "visibility": models.VisibilityPrivate})
	resolver := NewObjectResolver(w.filter(), nil)
	category := w.schema("category")
	idOf := func(rec *models.Record) string { return strconv.FormatInt(rec.ID, 10) }

	s := w.session(&RequestContext{Actor: w.actor("alice")})
	rec, err := resolver.Resolve(s, category, map[string]string{"id": idOf(books), "slug": "BOOKS"})
	require.NoError(t, err)
	assert.Equal(t, books.ID, rec.ID)

	_, err = resolver.Resolve(s, category, map[string]string{"id": idOf(books), "slug": "games"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NotErrorIs(t, err, appErrors.ErrPermissionDenied)

	_, err = resolver.Resolve(s, category, map[string]string{"id": idOf(secret), "slug": "secret"})
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)
	assert.True(t, appErrors.IsNotFoundClass(err))
	assert.Equal(t, "this 'category' is not available", err.Error())

	bob := w.session(&RequestContext{Actor: w.actor("bob")})
	rec, err = resolver.Resolve(bob, category, map[string]string{"id": idOf(secret), "slug": "secret"})
	require.NoError(t, err)
	assert.Equal(t, secret.ID, rec.ID)

	_, err = resolver.Resolve(s, category, map[string]string{"id": idOf(books)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
