package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/internal/repository"
	"github.com/noah-isme/dispatch-api/pkg/config"
)

var (
	anonymous = models.Actor{}
	staff     = models.Actor{ID: 900, Username: "root", IsStaff: true, IsSuperuser: true}
)

// world is a populated in-memory store with the example schemas.
type world struct {
	t        *testing.T
	cfg      config.DispatchConfig
	registry *SchemaRegistry
	store    *repository.MemoryRecordRepository
	audit    *repository.MemoryAuditRepository

	families map[string]*models.Record
	users    map[string]*models.Record
}

func newWorld(t *testing.T, mutate ...func(*config.DispatchConfig)) *world {
	t.Helper()
	cfg := config.Defaults().Dispatch
	for _, fn := range mutate {
		fn(&cfg)
	}
	registry := NewSchemaRegistry(cfg, nil)
	require.NoError(t, RegisterExampleSchemas(registry, cfg))

	w := &world{
		t:        t,
		cfg:      cfg,
		registry: registry,
		store:    repository.NewMemoryRecordRepository(),
		audit:    repository.NewMemoryAuditRepository(),
		families: map[string]*models.Record{},
		users:    map[string]*models.Record{},
	}
	w.families["smith"] = w.add("family", map[string]interface{}{"name": "Smith", "status": models.StatusPublished})
	w.families["jones"] = w.add("family", map[string]interface{}{"name": "Jones", "status": models.StatusPublished})
	w.users["alice"] = w.add("user", map[string]interface{}{"username": "alice"}, w.families["smith"].ID)
	w.users["bob"] = w.add("user", map[string]interface{}{"username": "bob"}, w.families["smith"].ID)
	w.users["carol"] = w.add("user", map[string]interface{}{"username": "carol"}, w.families["jones"].ID)
	return w
}

// add stores a record. Extra ids are linked through the user family relation.
func (w *world) add(schema string, values map[string]interface{}, family ...int64) *models.Record {
	w.t.Helper()
	rec := models.NewRecord(schema)
	for k, v := range values {
		rec.Set(k, v)
	}
	for _, id := range family {
		rec.AddRelated(w.cfg.FamilyField, id)
	}
	require.NoError(w.t, w.store.Create(context.Background(), rec))
	return rec
}

func (w *world) actor(name string) models.Actor {
	rec := w.users[name]
	return models.Actor{ID: rec.ID, Username: name}
}

func (w *world) schema(name string) *models.Schema {
	w.t.Helper()
	schema, err := w.registry.Resolve(name)
	require.NoError(w.t, err)
	return schema
}

func (w *world) session(req *RequestContext) *Session {
	if req == nil {
		req = &RequestContext{}
	}
	return NewSession(context.Background(), req, w.store, w.registry)
}

func (w *world) filter() *FilterEngine {
	return NewFilterEngine(w.cfg, nil)
}

func (w *world) dispatcher() *DispatchService {
	return NewDispatchService(w.cfg, w.registry, w.store, nil, w.audit, nil, nil, nil)
}

func (w *world) reload(rec *models.Record) *models.Record {
	w.t.Helper()
	fresh, err := w.store.Get(context.Background(), rec.Schema, rec.ID)
	require.NoError(w.t, err)
	return fresh
}

func displays(coll Collection, field string) []string {
	out := make([]string, 0, coll.Len())
	for _, rec := range coll.Records {
		out = append(out, rec.String(field))
	}
	return out
}
