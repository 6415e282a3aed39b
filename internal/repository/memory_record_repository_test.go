package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

func TestMemoryRecordRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecordRepository()

	first := models.NewRecord("tag")
	first.Set("name", "go")
	require.NoError(t, repo.Create(ctx, first))
	second := models.NewRecord("tag")
	second.Set("name", "rust")
	require.NoError(t, repo.Create(ctx, second))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	list, err := repo.List(ctx, "tag")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "go", list[0].Get("name"))

	list[0].Set("name", "mutated")
	got, err := repo.Get(ctx, "tag", 1)
	require.NoError(t, err)
	assert.Equal(t, "go", got.Get("name"))
}

func TestMemoryRecordRepositoryUpdateKeepsRelations(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecordRepository()

	rec := models.NewRecord("category")
	require.NoError(t, repo.Create(ctx, rec))
	require.NoError(t, repo.AddRelation(ctx, rec, "tags", 9))

	stale := models.NewRecord("category")
	stale.ID = rec.ID
	stale.Set("name", "Books")
	require.NoError(t, repo.Update(ctx, stale))

	got, err := repo.Get(ctx, "category", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Books", got.Get("name"))
	assert.Equal(t, []int64{9}, got.RelatedIDs("tags"))

	require.NoError(t, repo.RemoveRelation(ctx, got, "tags", 9))
	got, err = repo.Get(ctx, "category", rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RelatedIDs("tags"))
}

func TestMemoryRecordRepositoryMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecordRepository()

	_, err := repo.Get(ctx, "tag", 3)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	rec := models.NewRecord("tag")
	rec.ID = 3
	assert.ErrorIs(t, repo.Update(ctx, rec), appErrors.ErrNotFound)
	assert.ErrorIs(t, repo.AddRelation(ctx, rec, "x", 1), appErrors.ErrNotFound)
}
