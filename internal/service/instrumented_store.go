package service

import (
	"context"
	"time"

	"github.com/noah-isme/dispatch-api/internal/models"
)

// InstrumentedStore times every call of the wrapped store.
type InstrumentedStore struct {
	next    RecordStore
	metrics *MetricsService
}

// NewInstrumentedStore wraps next. A nil metrics service disables timing.
func NewInstrumentedStore(next RecordStore, metrics *MetricsService) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: metrics}
}

func (s *InstrumentedStore) observe(operation string, start time.Time) {
	s.metrics.ObserveStoreCall(operation, time.Since(start))
}

func (s *InstrumentedStore) List(ctx context.Context, schema string) ([]*models.Record, error) {
	defer s.observe("list", time.Now())
	return s.next.List(ctx, schema)
}

func (s *InstrumentedStore) Get(ctx context.Context, schema string, id int64) (*models.Record, error) {
	defer s.observe("get", time.Now())
	return s.next.Get(ctx, schema, id)
}

func (s *InstrumentedStore) Create(ctx context.Context, rec *models.Record) error {
	defer s.observe("create", time.Now())
	return s.next.Create(ctx, rec)
}

func (s *InstrumentedStore) Update(ctx context.Context, rec *models.Record) error {
	defer s.observe("update", time.Now())
	return s.next.Update(ctx, rec)
}

func (s *InstrumentedStore) AddRelation(ctx context.Context, rec *models.Record, field string, targetID int64) error {
	defer s.observe("add_relation", time.Now())
	return s.next.AddRelation(ctx, rec, field, targetID)
}

func (s *InstrumentedStore) RemoveRelation(ctx context.Context, rec *models.Record, field string, targetID int64) error {
	defer s.observe("remove_relation", time.Now())
	return s.next.RemoveRelation(ctx, rec, field, targetID)
}
