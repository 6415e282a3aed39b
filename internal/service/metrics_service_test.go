package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/internal/repository"
)

func TestMetricsServiceSummary(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/dispatch/:model", http.StatusOK, 5*time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordDispatch("", ActionRead, http.StatusOK)
	metrics.RecordDetectionFailure("model")
	metrics.RecordChanges(3)
	metrics.RecordChanges(-1)

	summary := metrics.Summary()
	assert.Equal(t, uint64(1), summary.RequestsTotal)
	assert.Equal(t, uint64(1), summary.DispatchTotal)
	assert.Equal(t, uint64(3), summary.ChangesTotal)
	assert.Equal(t, uint64(2), summary.CacheHits)
	assert.Equal(t, uint64(1), summary.CacheMisses)
	assert.InDelta(t, 2.0/3.0, summary.CacheHitRatio, 0.0001)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dispatch_actions_total{action="read",model="unknown",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `dispatch_detection_failures_total{stage="model"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		metrics.RecordDispatch("tag", ActionRead, http.StatusOK)
		metrics.ObserveStoreCall("list", time.Millisecond)
	})
	assert.Equal(t, MetricsSummary{}, metrics.Summary())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInstrumentedStoreCountsCalls(t *testing.T) {
	metrics := NewMetricsService()
	store := NewInstrumentedStore(repository.NewMemoryRecordRepository(), metrics)
	ctx := context.Background()

	rec := models.NewRecord("tag")
	rec.Set("name", "go")
	require.NoError(t, store.Create(ctx, rec))
	_, err := store.Get(ctx, "tag", rec.ID)
	require.NoError(t, err)
	_, err = store.List(ctx, "tag")
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, rec))
	require.NoError(t, store.AddRelation(ctx, rec, "tags", 1))
	require.NoError(t, store.RemoveRelation(ctx, rec, "tags", 1))

	assert.Equal(t, uint64(6), metrics.Summary().StoreCalls)
}

func TestReadKeyIgnoresParameterOrder(t *testing.T) {
	a := ReadKey("tag", map[string][]string{"GET.q": {"b", "a"}, "kwargs.model": {"tag"}})
	b := ReadKey("tag", map[string][]string{"kwargs.model": {"tag"}, "GET.q": {"a", "b"}})
	c := ReadKey("tag", map[string][]string{"GET.q": {"c"}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^dispatch:read:tag:[0-9a-f]{40}$`, a)
}

func TestCacheServiceDisabled(t *testing.T) {
	svc := NewCacheService(nil, nil, 0, nil, true)
	assert.False(t, svc.Enabled())
	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
	assert.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, svc.InvalidateModel(context.Background(), "tag"))

	var none *CacheService
	assert.False(t, none.Enabled())
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var dest map[string]int
	hit, err := svc.Get(ctx, "dispatch:read:tag:1", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "dispatch:read:tag:1", map[string]int{"n": 1}, 0))
	hit, err = svc.Get(ctx, "dispatch:read:tag:1", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]int{"n": 1}, dest)

	require.NoError(t, svc.InvalidateModel(ctx, "tag"))
	hit, _ = svc.Get(ctx, "dispatch:read:tag:1", &dest)
	assert.False(t, hit)
	assert.Equal(t, uint64(1), metrics.Summary().CacheHits)
	assert.Equal(t, uint64(2), metrics.Summary().CacheMisses)
}
