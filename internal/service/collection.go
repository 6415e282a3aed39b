package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

// PathSeparator joins relation hops in search keys and payload keys.
const PathSeparator = "__"

const maxDisplayDepth = 8

// RecordStore is the persistence collaborator the dispatcher reads and
// writes through.
type RecordStore interface {
	List(ctx context.Context, schema string) ([]*models.Record, error)
	Get(ctx context.Context, schema string, id int64) (*models.Record, error)
	Create(ctx context.Context, rec *models.Record) error
	Update(ctx context.Context, rec *models.Record) error
	AddRelation(ctx context.Context, rec *models.Record, field string, targetID int64) error
	RemoveRelation(ctx context.Context, rec *models.Record, field string, targetID int64) error
}

// Collection is an ordered set of records of one schema.
type Collection struct {
	Schema  *models.Schema
	Records []*models.Record
}

// Len returns the number of records.
func (c Collection) Len() int {
	return len(c.Records)
}

// Filter keeps the records pred accepts.
func (c Collection) Filter(pred func(*models.Record) bool) Collection {
	out := Collection{Schema: c.Schema, Records: make([]*models.Record, 0, len(c.Records))}
	for _, rec := range c.Records {
		if pred(rec) {
			out.Records = append(out.Records, rec)
		}
	}
	return out
}

// Empty returns an empty collection of the same schema.
func (c Collection) Empty() Collection {
	return Collection{Schema: c.Schema}
}

// Snapshot is a request scoped, lazily loaded view of the record store. Every
// schema is listed at most once per request.
type Snapshot struct {
	ctx      context.Context
	store    RecordStore
	registry *SchemaRegistry
	lists    map[string][]*models.Record
	index    map[string]map[int64]*models.Record
	written  map[string]struct{}
}

// NewSnapshot constructs an empty snapshot.
func NewSnapshot(ctx context.Context, store RecordStore, registry *SchemaRegistry) *Snapshot {
	return &Snapshot{
		ctx:      ctx,
		store:    store,
		registry: registry,
		lists:    make(map[string][]*models.Record),
		index:    make(map[string]map[int64]*models.Record),
		written:  make(map[string]struct{}),
	}
}

// Context returns the request context the snapshot reads with.
func (s *Snapshot) Context() context.Context {
	return s.ctx
}

// Store exposes the underlying record store for writes.
func (s *Snapshot) Store() RecordStore {
	return s.store
}

// Schema looks up a relation target schema.
func (s *Snapshot) Schema(name string) (*models.Schema, error) {
	return s.registry.Lookup(name)
}

// All returns the unfiltered collection of a schema.
func (s *Snapshot) All(schema *models.Schema) (Collection, error) {
	if records, ok := s.lists[schema.Name]; ok {
		return Collection{Schema: schema, Records: records}, nil
	}
	records, err := s.store.List(s.ctx, schema.Name)
	if err != nil {
		return Collection{Schema: schema}, fmt.Errorf("load %s records: %w", schema.Name, err)
	}
	idx := s.index[schema.Name]
	if idx == nil {
		idx = make(map[int64]*models.Record, len(records))
		s.index[schema.Name] = idx
	}
	for i, rec := range records {
		if known, ok := idx[rec.ID]; ok {
			records[i] = known
			continue
		}
		idx[rec.ID] = rec
	}
	s.lists[schema.Name] = records
	return Collection{Schema: schema, Records: records}, nil
}

// Get returns one record, or nil when it does not exist.
func (s *Snapshot) Get(schemaName string, id int64) (*models.Record, error) {
	if rec, ok := s.index[schemaName][id]; ok {
		return rec, nil
	}
	if _, listed := s.lists[schemaName]; listed {
		return nil, nil
	}
	rec, err := s.store.Get(s.ctx, schemaName, id)
	if err != nil {
		if appErrors.IsNotFoundClass(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s %d: %w", schemaName, id, err)
	}
	s.remember(rec)
	return rec, nil
}

// MarkWritten records that a schema was modified during the request.
func (s *Snapshot) MarkWritten(schemaName string) {
	s.written[schemaName] = struct{}{}
}

// Written lists the schemas modified during the request, sorted.
func (s *Snapshot) Written() []string {
	out := make([]string, 0, len(s.written))
	for name := range s.written {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Add makes a freshly created record visible to later lookups.
func (s *Snapshot) Add(rec *models.Record) {
	s.remember(rec)
	if list, ok := s.lists[rec.Schema]; ok {
		s.lists[rec.Schema] = append(list, rec)
	}
}

func (s *Snapshot) remember(rec *models.Record) {
	idx := s.index[rec.Schema]
	if idx == nil {
		idx = make(map[int64]*models.Record)
		s.index[rec.Schema] = idx
	}
	idx[rec.ID] = rec
}

// Related returns the records linked through a relation field.
func (s *Snapshot) Related(rec *models.Record, field models.FieldSpec) ([]*models.Record, error) {
	switch field.Kind {
	case models.FieldKindForeignKey:
		id, ok := rec.Ref(field.Name)
		if !ok {
			return nil, nil
		}
		target, err := s.Get(field.Related, id)
		if err != nil || target == nil {
			return nil, err
		}
		return []*models.Record{target}, nil
	case models.FieldKindManyRelation:
		ids := rec.RelatedIDs(field.Name)
		out := make([]*models.Record, 0, len(ids))
		for _, id := range ids {
			target, err := s.Get(field.Related, id)
			if err != nil {
				return nil, err
			}
			if target != nil {
				out = append(out, target)
			}
		}
		return out, nil
	default:
		return nil, nil
	}
}

// Display returns the human readable form of a record. Records with a
// self-referential parent are prefixed with their parent's display.
func (s *Snapshot) Display(schema *models.Schema, rec *models.Record) string {
	return s.display(schema, rec, 0)
}

func (s *Snapshot) display(schema *models.Schema, rec *models.Record, depth int) string {
	if rec == nil {
		return ""
	}
	label := models.FormatValue(rec.Get(schema.DisplayFieldName()))
	if label == "" {
		if rec.IsNew() {
			label = schema.Name + " (new)"
		} else {
			label = fmt.Sprintf("%s %d", schema.Name, rec.ID)
		}
	}
	if depth >= maxDisplayDepth || !schema.HasSelfParent() {
		return label
	}
	parentID, ok := rec.Ref(models.FieldParent)
	if !ok || parentID == rec.ID {
		return label
	}
	parent, err := s.Get(schema.Name, parentID)
	if err != nil || parent == nil {
		return label
	}
	return s.display(schema, parent, depth+1) + ": " + label
}

// SplitPath turns "a__b" or "a.b" into path segments.
func SplitPath(key string) []string {
	key = strings.ReplaceAll(key, ".", PathSeparator)
	return strings.Split(key, PathSeparator)
}

// pathTarget describes where a validated path ends.
type pathTarget struct {
	schema   *models.Schema
	field    models.FieldSpec
	function *models.FunctionSpec
	property *models.PropertySpec
}

// resolvePath checks that every hop of path exists. Intermediate hops must
// be relations; the last hop may be a field, a property or a function.
func (s *Snapshot) resolvePath(schema *models.Schema, path []string) (pathTarget, error) {
	current := schema
	for i, seg := range path {
		last := i == len(path)-1
		if field, ok := current.Field(seg); ok {
			if last {
				return pathTarget{schema: current, field: field}, nil
			}
			if !field.IsRelation() {
				return pathTarget{}, appErrors.Clonef(appErrors.ErrNotFound, "'%s' on '%s' is not a relation", seg, current.Name)
			}
			next, err := s.Schema(field.Related)
			if err != nil {
				return pathTarget{}, err
			}
			current = next
			continue
		}
		if last {
			if fn, ok := current.Function(seg); ok {
				return pathTarget{schema: current, function: &fn}, nil
			}
			if prop, ok := current.Property(seg); ok {
				return pathTarget{schema: current, property: &prop}, nil
			}
		}
		return pathTarget{}, appErrors.Clonef(appErrors.ErrNotFound, "field '%s' not found on '%s'", seg, current.Name)
	}
	return pathTarget{}, appErrors.Clone(appErrors.ErrNotFound, "empty field path")
}

// PathValues returns the display strings found by walking path from rec.
// Relations at the end of a path yield the related records' display and id.
func (s *Snapshot) PathValues(schema *models.Schema, rec *models.Record, path []string, actor models.Actor) ([]string, error) {
	if len(path) == 0 || rec == nil {
		return nil, nil
	}
	seg := path[0]
	field, ok := schema.Field(seg)
	if !ok {
		if len(path) != 1 {
			return nil, nil
		}
		if fn, ok := schema.Function(seg); ok {
			v, err := callFunction(fn, rec, actor)
			if err != nil {
				return nil, err
			}
			return []string{models.FormatValue(v)}, nil
		}
		if prop, ok := schema.Property(seg); ok {
			return []string{models.FormatValue(prop.Get(rec))}, nil
		}
		return nil, nil
	}

	if !field.IsRelation() {
		if len(path) != 1 {
			return nil, nil
		}
		raw := models.FormatValue(rec.Get(seg))
		if label := field.Label(raw); label != raw {
			return []string{raw, label}, nil
		}
		return []string{raw}, nil
	}

	related, err := s.Related(rec, field)
	if err != nil {
		return nil, err
	}
	target, err := s.Schema(field.Related)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, other := range related {
		if len(path) == 1 {
			out = append(out, s.Display(target, other), strconv.FormatInt(other.ID, 10))
			continue
		}
		values, err := s.PathValues(target, other, path[1:], actor)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	return out, nil
}

// callFunction invokes a schema function, preferring the actor-aware form.
func callFunction(fn models.FunctionSpec, rec *models.Record, actor models.Actor) (interface{}, error) {
	switch {
	case fn.CallWithActor != nil:
		return fn.CallWithActor(rec, actor)
	case fn.Call != nil:
		return fn.Call(rec)
	default:
		return nil, appErrors.Clonef(appErrors.ErrUnsupportedFieldType, "function '%s' is not callable", fn.Name)
	}
}
