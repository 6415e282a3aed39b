package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/config"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

func objectKwargs(model string, rec *models.Record, slug string) map[string]string {
	return map[string]string{
		"model":       model,
		"object_id":   strconv.FormatInt(rec.ID, 10),
		"object_slug": slug,
	}
}

func messageTexts(messages []models.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Text)
	}
	return out
}

func TestDispatchListing(t *testing.T) {
	w := newWorld(t)
	books := w.add("category", map[string]interface{}{"name": "Books", "visibility": models.VisibilityPublic})
	w.add("category", map[string]interface{}{"name": "Drafts", "status": models.StatusConcept, "visibility": models.VisibilityPublic})
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{Method: http.MethodGet, Kwargs: map[string]string{"model": "categories"}})
	assert.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, StateResponseReady, result.State)
	assert.Nil(t, result.Response.Meta)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"id": books.ID, "display": "Books"},
	}, result.Response.Payload)

	result = svc.Dispatch(context.Background(), &RequestContext{Actor: staff, Method: http.MethodGet, Path: "/api/v1/dispatch/category", Kwargs: map[string]string{"model": "category"}})
	assert.Equal(t, http.StatusOK, result.Response.Status)
	assert.Len(t, result.Response.Payload, 2)
	require.NotNil(t, result.Response.Meta)
	assert.Equal(t, "category", result.Response.Meta.Model)
	assert.Equal(t, staff, result.Response.Meta.RequestUser)
	assert.Equal(t, "/api/v1/dispatch/category", result.Response.Meta.Request.Path)
	assert.Nil(t, result.Response.Meta.Object)
}

func TestDispatchSearchListing(t *testing.T) {
	w := newWorld(t)
	seedCategories(w)

	result := w.dispatcher().Dispatch(context.Background(), &RequestContext{
		Kwargs: map[string]string{"model": "category"},
		Query:  url.Values{"q": {"vinyl || board"}, "format": {"text"}},
	})
	require.Equal(t, http.StatusOK, result.Response.Status)
	items := result.Response.Payload.([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "Games", items[0].(map[string]interface{})["display"])
	assert.Equal(t, "Music", items[1].(map[string]interface{})["display"])
}

func TestDispatchDetectionFailures(t *testing.T) {
	w := newWorld(t)
	books := w.add("category", map[string]interface{}{"name": "Books", "slug": "books", "visibility": models.VisibilityPublic})
	secret := w.add("category", map[string]interface{}{"name": "Secret", "slug": "secret", "user": w.users["bob"].ID, "visibility": models.VisibilityPrivate})
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{Kwargs: map[string]string{"model": "nope"}})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	assert.Equal(t, []string{"the requested content could not be found"}, messageTexts(result.Response.Messages))
	assert.Equal(t, models.LevelDanger, result.Response.Messages[0].Level)
	assert.Nil(t, result.Response.Payload)

	result = svc.Dispatch(context.Background(), &RequestContext{Actor: staff, Kwargs: map[string]string{"model": "nope"}})
	assert.Equal(t, []string{"the requested content could not be found: model 'nope' not found"}, messageTexts(result.Response.Messages))

	result = svc.Dispatch(context.Background(), &RequestContext{Kwargs: map[string]string{"model": "session"}})
	assert.Equal(t, []string{"you are not allowed to do this"}, messageTexts(result.Response.Messages))

	result = svc.Dispatch(context.Background(), &RequestContext{Kwargs: objectKwargs("category", books, "games")})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	assert.Equal(t, StateResponseReady, result.State)

	result = svc.Dispatch(context.Background(), &RequestContext{Kwargs: map[string]string{"model": "category", "object_id": "1"}})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	assert.Equal(t, []string{"the request is invalid"}, messageTexts(result.Response.Messages))

	result = svc.Dispatch(context.Background(), &RequestContext{Actor: w.actor("alice"), Kwargs: objectKwargs("category", secret, "secret")})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	hidden := messageTexts(result.Response.Messages)
	assert.Equal(t, []string{"you do not have permission to access the requested content"}, hidden)

	result = svc.Dispatch(context.Background(), &RequestContext{Actor: w.actor("alice"), Kwargs: objectKwargs("category", &models.Record{ID: 999}, "ghost")})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	missing := messageTexts(result.Response.Messages)
	assert.Equal(t, []string{"the requested content could not be found"}, missing)
	assert.NotEqual(t, hidden, missing)

	result = svc.Dispatch(context.Background(), &RequestContext{Method: http.MethodOptions, Kwargs: map[string]string{"model": "category"}})
	assert.Equal(t, http.StatusMethodNotAllowed, result.Response.Status)
	assert.Equal(t, []string{"method 'OPTIONS' is not supported"}, messageTexts(result.Response.Messages))
}

func TestDispatchReadsFields(t *testing.T) {
	w := newWorld(t)
	comment := w.add("comment", map[string]interface{}{
		"title": "Hello & bye", "slug": "hello", "body": "one two three",
		"rating": int64(3), "visibility": models.VisibilityPublic,
	})
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{
		Kwargs: objectKwargs("comment", comment, "hello"),
		Query:  url.Values{"field": {"title,rating", "word_count,bogus"}},
	})
	require.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, map[string]interface{}{
		"title":      "Hello &amp; bye",
		"rating":     "Good",
		"word_count": "3",
	}, result.Response.Payload)
	assert.Equal(t, []string{"field 'bogus' not found on 'comment'"}, messageTexts(result.Response.Messages))
	assert.Equal(t, models.LevelWarning, result.Response.Messages[0].Level)

	result = svc.Dispatch(context.Background(), &RequestContext{
		Kwargs: objectKwargs("comment", comment, "hello"),
		Query:  url.Values{"field": {"title,word_count"}, "format": {"json"}},
	})
	assert.Equal(t, map[string]interface{}{"title": "Hello & bye", "word_count": 3}, result.Response.Payload)

	result = svc.Dispatch(context.Background(), &RequestContext{
		Kwargs: objectKwargs("comment", comment, "hello"),
		Query:  url.Values{"field": {"slug"}},
	})
	assert.Equal(t, map[string]interface{}{}, result.Response.Payload)
	require.Len(t, result.Response.Messages, 1)
	assert.Equal(t, "you are not allowed to do this (field 'slug')", result.Response.Messages[0].Text)
}

func TestDispatchAllFieldsSentinel(t *testing.T) {
	w := newWorld(t)
	comment := w.add("comment", map[string]interface{}{"title": "Hello", "slug": "hello", "visibility": models.VisibilityPublic})
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Kwargs: objectKwargs("comment", comment, "hello"),
		Query:  url.Values{"field": {AllFieldsSentinel}},
	})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	assert.Equal(t, []string{"the requested content could not be found (field '__all__')"}, messageTexts(result.Response.Messages))
	assert.Nil(t, result.Response.Payload)
	assert.Equal(t, StateResponseReady, result.State)

	result = svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Kwargs: objectKwargs("comment", comment, "hello"),
		Query:  url.Values{"field": {"bogus,missing"}},
	})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	assert.Equal(t, []string{
		"the requested content could not be found (field 'bogus')",
		"the requested content could not be found (field 'missing')",
	}, messageTexts(result.Response.Messages))
	assert.Nil(t, result.Response.Payload)

	result = svc.Dispatch(context.Background(), &RequestContext{
		Actor:  staff,
		Kwargs: objectKwargs("comment", comment, "hello"),
		Query:  url.Values{"field": {AllFieldsSentinel}},
	})
	require.NotNil(t, result.Response.Meta)
	assert.Contains(t, result.Response.Meta.Fields, "title")
	assert.NotContains(t, result.Response.Meta.Fields, "slug")
	assert.NotContains(t, result.Response.Meta.Fields, "status")
	assert.Equal(t, []string{"word_count", "is_mine"}, result.Response.Meta.Functions)
	require.NotNil(t, result.Response.Meta.Object)
	assert.Equal(t, comment.ID, result.Response.Meta.Object.ID)
}

func TestDispatchUpdateRequiresOwner(t *testing.T) {
	w := newWorld(t)
	comment := w.add("comment", map[string]interface{}{"title": "Hello", "slug": "hello", "user": w.users["alice"].ID, "visibility": models.VisibilityPublic})
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{
		Method: http.MethodPost,
		Kwargs: objectKwargs("comment", comment, "hello"),
		Form:   url.Values{"title": {"Hijacked"}},
	})
	assert.Equal(t, http.StatusForbidden, result.Response.Status)
	assert.Equal(t, []string{"you are not allowed to do this"}, messageTexts(result.Response.Messages))

	result = svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("bob"),
		Method: http.MethodPost,
		Kwargs: objectKwargs("comment", comment, "hello"),
		Form:   url.Values{"title": {"Hijacked"}},
	})
	assert.Equal(t, http.StatusForbidden, result.Response.Status)
	assert.Equal(t, "Hello", w.reload(comment).String("title"))
}

func TestDispatchUpdateByOwner(t *testing.T) {
	w := newWorld(t)
	comment := w.add("comment", map[string]interface{}{"title": "Hello", "slug": "hello", "user": w.users["alice"].ID, "visibility": models.VisibilityPublic})
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{
		Actor:     w.actor("alice"),
		Method:    http.MethodPost,
		RemoteIP:  "10.0.0.1",
		UserAgent: "test-agent",
		Kwargs:    objectKwargs("comment", comment, "hello"),
		JSON:      map[string]interface{}{"title": "New title", "rating": "fair"},
	})
	require.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, []string{
		"comment 'New title' updated: changed field 'rating' from '' to 'Fair'; changed field 'title' from 'Hello' to 'New title'",
	}, messageTexts(result.Response.Messages))
	assert.Equal(t, models.LevelSuccess, result.Response.Messages[0].Level)

	stored := w.reload(comment)
	assert.Equal(t, "New title", stored.String("title"))
	assert.Equal(t, int64(2), stored.Get("rating"))
	assert.NotNil(t, stored.Get(models.FieldDateModified))

	entries, err := w.audit.ListByResource(context.Background(), "comment", comment.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionRecordUpdate, entries[0].Action)
	assert.Equal(t, "10.0.0.1", entries[0].IPAddress)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, w.users["alice"].ID, *entries[0].UserID)
	var changes []models.Change
	require.NoError(t, json.Unmarshal(entries[0].Changes, &changes))
	assert.Len(t, changes, 2)

	result = svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodPost,
		Kwargs: objectKwargs("comment", comment, "hello"),
		JSON:   map[string]interface{}{"title": "New title"},
	})
	assert.Equal(t, http.StatusOK, result.Response.Status)
	assert.Empty(t, result.Response.Messages)
	entries, _ = w.audit.ListByResource(context.Background(), "comment", comment.ID)
	assert.Len(t, entries, 1)
}

func TestDispatchUpdateReportsFieldErrors(t *testing.T) {
	w := newWorld(t)
	comment := w.add("comment", map[string]interface{}{"title": "Hello", "slug": "hello", "user": w.users["alice"].ID, "visibility": models.VisibilityPublic})
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodPost,
		Kwargs: objectKwargs("comment", comment, "hello"),
		Form:   url.Values{"rating": {"stellar"}, "title": {"Still saved"}},
	})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	texts := messageTexts(result.Response.Messages)
	assert.Contains(t, texts, "the request is invalid (field 'rating')")
	assert.Equal(t, "Still saved", w.reload(comment).String("title"))

	result = svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodPost,
		Kwargs: objectKwargs("comment", comment, "hello"),
	})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
	assert.Equal(t, []string{"the request is invalid"}, messageTexts(result.Response.Messages))

	result = svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodPost,
		Kwargs: map[string]string{"model": "comment"},
		Form:   url.Values{"title": {"Orphan"}},
	})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
}

func TestDispatchTogglesRelationsAndBooleans(t *testing.T) {
	w := newWorld(t)
	comment := w.add("comment", map[string]interface{}{"title": "Hello", "slug": "hello", "user": w.users["alice"].ID, "visibility": models.VisibilityPublic})
	tag := w.add("tag", map[string]interface{}{"name": "python", "visibility": models.VisibilityPublic})
	svc := w.dispatcher()

	toggleTag := func() *DispatchResult {
		kwargs := objectKwargs("comment", comment, "hello")
		kwargs["field"] = "tags"
		return svc.Dispatch(context.Background(), &RequestContext{
			Actor:  w.actor("alice"),
			Method: http.MethodPost,
			Kwargs: kwargs,
			Form:   url.Values{"value": {"python"}},
		})
	}

	result := toggleTag()
	require.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, []string{"comment 'Hello' updated: added 'python' to 'tags'"}, messageTexts(result.Response.Messages))
	assert.Equal(t, map[string]interface{}{"tags": []string{"python"}}, result.Response.Payload)
	assert.Equal(t, []int64{tag.ID}, w.reload(comment).RelatedIDs("tags"))

	result = toggleTag()
	require.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, []string{"comment 'Hello' updated: removed 'python' from 'tags'"}, messageTexts(result.Response.Messages))
	assert.Empty(t, w.reload(comment).RelatedIDs("tags"))

	kwargs := objectKwargs("comment", comment, "hello")
	kwargs["field"] = "pinned"
	result = svc.Dispatch(context.Background(), &RequestContext{Actor: w.actor("alice"), Method: http.MethodPost, Kwargs: kwargs})
	require.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, true, w.reload(comment).Get("pinned"))
	assert.Equal(t, map[string]interface{}{"pinned": "true"}, result.Response.Payload)

	result = svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodPost,
		Kwargs: kwargs,
		Form:   url.Values{"pinned": {""}},
	})
	require.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, false, w.reload(comment).Get("pinned"))
	assert.Equal(t, map[string]interface{}{"pinned": "false"}, result.Response.Payload)
}

func TestDispatchAddMode(t *testing.T) {
	w := newWorld(t)
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodPost,
		Kwargs: map[string]string{"model": "category"},
		Query:  url.Values{"mode": {"editable,add"}},
		Form:   url.Values{"name": {"Travel"}},
	})
	require.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, []string{
		"created new 'category' 'Travel'",
		"category 'Travel' updated: changed field 'name' from '' to 'Travel'",
	}, messageTexts(result.Response.Messages))

	view := result.Response.Payload.(map[string]interface{})
	id := view["id"].(int64)
	stored, err := w.store.Get(context.Background(), "category", id)
	require.NoError(t, err)
	assert.Equal(t, "travel", stored.String("slug"))
	owner, _ := stored.Ref(models.FieldOwner)
	assert.Equal(t, w.users["alice"].ID, owner)
	assert.Equal(t, models.StatusPublished, stored.String(models.FieldStatus))

	entries, _ := w.audit.ListByResource(context.Background(), "category", id)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionRecordCreate, entries[0].Action)
}

func TestDispatchDelete(t *testing.T) {
	w := newWorld(t)
	comment := w.add("comment", map[string]interface{}{"title": "Hello", "slug": "hello", "user": w.users["alice"].ID, "visibility": models.VisibilityPublic})
	svc := w.dispatcher()

	result := svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodDelete,
		Kwargs: objectKwargs("comment", comment, "hello"),
	})
	require.Equal(t, http.StatusOK, result.Response.Status)
	assert.Equal(t, map[string]interface{}{"id": comment.ID, "status": models.StatusDeleted}, result.Response.Payload)
	assert.Equal(t, []string{"'comment' 'Hello' deleted"}, messageTexts(result.Response.Messages))
	assert.Equal(t, models.StatusDeleted, w.reload(comment).String(models.FieldStatus))

	entries, _ := w.audit.ListByResource(context.Background(), "comment", comment.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionRecordDelete, entries[0].Action)

	result = svc.Dispatch(context.Background(), &RequestContext{Kwargs: objectKwargs("comment", comment, "hello")})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)

	result = svc.Dispatch(context.Background(), &RequestContext{Method: http.MethodDelete, Kwargs: map[string]string{"model": "comment"}})
	assert.Equal(t, http.StatusBadRequest, result.Response.Status)
}

func TestDispatchExportsListing(t *testing.T) {
	w := newWorld(t)
	seedCategories(w)

	result := w.dispatcher().Dispatch(context.Background(), &RequestContext{
		Kwargs: map[string]string{"model": "category"},
		Query:  url.Values{"format": {"CSV"}},
	})
	require.NotNil(t, result.Attachment)
	assert.Nil(t, result.Response.Payload)
	assert.Equal(t, "categories.csv", result.Attachment.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", result.Attachment.ContentType)
	body := string(result.Attachment.Data)
	assert.True(t, strings.HasPrefix(body, "id,display,"))
	assert.Contains(t, body, "Books")
	assert.NotContains(t, body, "slug")
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	dropped []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func TestDispatchReadCache(t *testing.T) {
	w := newWorld(t, allowCategoryCreation)
	books := w.add("category", map[string]interface{}{"name": "Books", "slug": "books", "user": w.users["alice"].ID, "visibility": models.VisibilityPublic})
	comment := w.add("comment", map[string]interface{}{"title": "Hello", "slug": "hello", "user": w.users["alice"].ID, "visibility": models.VisibilityPublic})
	repo := newMemoryCache()
	cacheSvc := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewDispatchService(w.cfg, w.registry, w.store, nil, w.audit, cacheSvc, nil, nil)

	listing := func() *DispatchResult {
		return svc.Dispatch(context.Background(), &RequestContext{Method: http.MethodGet, Kwargs: map[string]string{"model": "category"}})
	}

	first := listing()
	assert.False(t, first.CacheHit)
	assert.Len(t, repo.entries, 1)

	second := listing()
	assert.True(t, second.CacheHit)
	assert.Equal(t, http.StatusOK, second.Response.Status)
	assert.Len(t, second.Response.Payload, 1)

	authenticated := svc.Dispatch(context.Background(), &RequestContext{Actor: w.actor("alice"), Kwargs: map[string]string{"model": "category"}})
	assert.False(t, authenticated.CacheHit)

	update := svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodPost,
		Kwargs: objectKwargs("category", books, "books"),
		Form:   url.Values{"name": {"Novels"}},
	})
	require.Equal(t, http.StatusOK, update.Response.Status)
	assert.Equal(t, []string{"dispatch:read:category:*"}, repo.dropped)
	assert.Empty(t, repo.entries)

	third := listing()
	assert.False(t, third.CacheHit)
	assert.True(t, listing().CacheHit)

	repo.dropped = nil
	created := svc.Dispatch(context.Background(), &RequestContext{
		Actor:  w.actor("alice"),
		Method: http.MethodPost,
		Kwargs: objectKwargs("comment", comment, "hello"),
		Form:   url.Values{"category": {"Travel"}},
	})
	require.Equal(t, http.StatusOK, created.Response.Status)
	assert.Equal(t, []string{"dispatch:read:comment:*", "dispatch:read:category:*"}, repo.dropped)
	assert.False(t, listing().CacheHit)
}

func TestBuildPayloadNestsKeys(t *testing.T) {
	w := newWorld(t, func(cfg *config.DispatchConfig) {
		cfg.MaxDepth = 1
	})
	svc := w.dispatcher()
	d := &dispatch{
		svc:    svc,
		s:      w.session(&RequestContext{Form: url.Values{"category__parent__name": {"Media"}, "title": {"A", "B"}, "__x": {"bad"}, "format": {"json"}}}),
		fields: []string{"title"},
	}
	payload := d.buildPayload()
	assert.Equal(t, map[string]interface{}{
		"category": map[string]interface{}{"parent__name": "Media"},
		"title":    []interface{}{"A", "B"},
	}, payload)
	assert.True(t, d.s.Messages.HasLevel(models.LevelDebug))
}

func TestActionFor(t *testing.T) {
	for method, want := range map[string]string{
		"": ActionRead, "get": ActionRead, http.MethodHead: ActionRead,
		http.MethodPost: ActionUpdate, http.MethodPatch: ActionUpdate, http.MethodPut: ActionUpdate,
		http.MethodDelete: ActionDelete,
	} {
		got, ok := actionFor(method)
		assert.True(t, ok, method)
		assert.Equal(t, want, got, method)
	}
	_, ok := actionFor(http.MethodOptions)
	assert.False(t, ok)
}
