package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

// MemoryRecordRepository keeps records in process memory. Reads and writes
// hand out deep copies so callers never share state with the store.
type MemoryRecordRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[string]map[int64]*models.Record
}

// NewMemoryRecordRepository constructs an empty store.
func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{records: make(map[string]map[int64]*models.Record)}
}

// List returns copies of every record of a schema ordered by id.
func (r *MemoryRecordRepository) List(ctx context.Context, schema string) ([]*models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.records[schema]
	out := make([]*models.Record, 0, len(bucket))
	for _, rec := range bucket {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns a copy of one record.
func (r *MemoryRecordRepository) Get(ctx context.Context, schema string, id int64) (*models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[schema][id]
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "%s %d not found", schema, id)
	}
	return rec.Clone(), nil
}

// Create stores a copy of rec and assigns its id.
func (r *MemoryRecordRepository) Create(ctx context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rec.ID = r.nextID
	if r.records[rec.Schema] == nil {
		r.records[rec.Schema] = make(map[int64]*models.Record)
	}
	r.records[rec.Schema][rec.ID] = rec.Clone()
	return nil
}

// Update replaces the stored field values; relations are left untouched.
func (r *MemoryRecordRepository) Update(ctx context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[rec.Schema][rec.ID]
	if !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "%s %d not found", rec.Schema, rec.ID)
	}
	values := rec.Clone().Values
	stored.Values = values
	return nil
}

// AddRelation links target to rec through a many-relation.
func (r *MemoryRecordRepository) AddRelation(ctx context.Context, rec *models.Record, field string, targetID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[rec.Schema][rec.ID]
	if !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "%s %d not found", rec.Schema, rec.ID)
	}
	stored.AddRelated(field, targetID)
	rec.AddRelated(field, targetID)
	return nil
}

// RemoveRelation unlinks target from rec.
func (r *MemoryRecordRepository) RemoveRelation(ctx context.Context, rec *models.Record, field string, targetID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[rec.Schema][rec.ID]
	if !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "%s %d not found", rec.Schema, rec.ID)
	}
	stored.RemoveRelated(field, targetID)
	rec.RemoveRelated(field, targetID)
	return nil
}
