package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/config"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

// HierarchyDelimiter separates the levels of a hierarchical name.
const HierarchyDelimiter = ":"

// RelatedResolver finds or creates the record a relation update points at.
type RelatedResolver struct {
	cfg    config.DispatchConfig
	filter *FilterEngine
	logger *zap.Logger
}

// NewRelatedResolver constructs a resolver. Lookups run through filter so
// invisible records are never linked.
func NewRelatedResolver(cfg config.DispatchConfig, filter *FilterEngine, logger *zap.Logger) *RelatedResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelatedResolver{cfg: cfg, filter: filter, logger: logger}
}

// IdentifiersFor turns a payload value into lookup identifiers. Maps pass
// through; integers select by id and anything else by display name.
func IdentifiersFor(schema *models.Schema, value interface{}) map[string]interface{} {
	switch typed := value.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return typed
	}
	raw := strings.TrimSpace(models.FormatValue(value))
	if raw == "" {
		return nil
	}
	if id, err := toInt64(raw); err == nil && id > 0 && !strings.HasPrefix(raw, "0") {
		return map[string]interface{}{models.FieldID: id}
	}
	return map[string]interface{}{schema.DisplayFieldName(): raw}
}

// ResolveOrCreate returns the single record of schema matching ids,
// creating it when nothing matches and creation is allowed for kind.
// Mapping values are resolved recursively against the field's related
// schema, at most MaxDepth levels deep.
func (r *RelatedResolver) ResolveOrCreate(s *Session, reporter ChangeReporter, schema *models.Schema, ids map[string]interface{}, kind models.FieldKind, depth int) (*models.Record, error) {
	if depth > r.cfg.MaxDepth {
		return nil, appErrors.Clonef(appErrors.ErrRecursionLimit, "maximum recursion depth of %d exceeded while resolving '%s'", r.cfg.MaxDepth, schema.Name)
	}
	if len(ids) == 0 {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "no identifiers given for '%s'", schema.Name)
	}

	flat := make(map[string]interface{}, len(ids))
	for key, value := range ids {
		// ownership is assigned from the actor, never from input
		if key == models.FieldOwner {
			continue
		}
		field, ok := schema.Field(key)
		if !ok {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "field '%s' not found on '%s'", key, schema.Name)
		}
		nested, isMap := value.(map[string]interface{})
		if !isMap {
			flat[key] = value
			continue
		}
		if !field.IsRelation() {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "field '%s' on '%s' is not a relation", key, schema.Name)
		}
		target, err := s.Snapshot.Schema(field.Related)
		if err != nil {
			return nil, err
		}
		rec, err := r.ResolveOrCreate(s, reporter, target, nested, kind, depth+1)
		if err != nil {
			return nil, err
		}
		flat[key] = rec.ID
	}
	if len(flat) == 0 {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "no identifiers given for '%s'", schema.Name)
	}

	if name, ok := flat[models.FieldName].(string); ok && strings.Contains(name, HierarchyDelimiter) && schema.HasSelfParent() {
		return r.resolveHierarchy(s, reporter, schema, flat, kind)
	}
	return r.resolveFlat(s, reporter, schema, flat, kind, "")
}

// resolveHierarchy walks "A:B:C", reusing or creating each level with the
// previous one as parent. Extra identifiers only apply to the deepest level.
func (r *RelatedResolver) resolveHierarchy(s *Session, reporter ChangeReporter, schema *models.Schema, flat map[string]interface{}, kind models.FieldKind) (*models.Record, error) {
	var parts []string
	for _, part := range strings.Split(flat[models.FieldName].(string), HierarchyDelimiter) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "empty hierarchical name for '%s'", schema.Name)
	}

	var parent *models.Record
	for i, part := range parts {
		ids := map[string]interface{}{models.FieldName: part, models.FieldParent: nil}
		if parent != nil {
			ids[models.FieldParent] = parent.ID
		}
		if i == len(parts)-1 {
			for key, value := range flat {
				if key != models.FieldName && key != models.FieldParent {
					ids[key] = value
				}
			}
		}
		rec, err := r.resolveFlat(s, reporter, schema, ids, kind, strings.Join(parts[:i+1], " "))
		if err != nil {
			return nil, err
		}
		parent = rec
	}
	return parent, nil
}

func (r *RelatedResolver) resolveFlat(s *Session, reporter ChangeReporter, schema *models.Schema, ids map[string]interface{}, kind models.FieldKind, slugSource string) (*models.Record, error) {
	all, err := s.Snapshot.All(schema)
	if err != nil {
		return nil, err
	}
	visible, err := r.filter.Filter(s, all, FilterOptions{SuppressSearch: true, AllowPrivileged: true})
	if err != nil {
		return nil, err
	}
	matches := visible.Filter(func(rec *models.Record) bool {
		return matchesIdentifiers(schema, rec, ids)
	})
	switch matches.Len() {
	case 1:
		return matches.Records[0], nil
	case 0:
	default:
		return nil, appErrors.Clonef(appErrors.ErrAmbiguous, "%d '%s' records match %s", matches.Len(), schema.Name, describeIdentifiers(ids))
	}

	hidden := all.Filter(func(rec *models.Record) bool {
		return matchesIdentifiers(schema, rec, ids)
	})
	if hidden.Len() > 0 {
		return nil, appErrors.Clonef(appErrors.ErrPermissionDenied, "'%s' matching %s is not available", schema.Name, describeIdentifiers(ids))
	}
	return r.create(s, reporter, schema, ids, kind, slugSource)
}

func (r *RelatedResolver) creationAllowed(schema *models.Schema, kind models.FieldKind) bool {
	check := r.cfg.AllowsFKCreation
	if kind == models.FieldKindManyRelation {
		check = r.cfg.AllowsRelatedCreation
	}
	return check(schema.Name) || check(schema.QualifiedName())
}

func (r *RelatedResolver) create(s *Session, reporter ChangeReporter, schema *models.Schema, ids map[string]interface{}, kind models.FieldKind, slugSource string) (*models.Record, error) {
	if !r.creationAllowed(schema, kind) {
		return nil, appErrors.Clonef(appErrors.ErrForbidden, "creating new '%s' records is not allowed", schema.Name)
	}
	if schema.RestrictReadAccess == models.RestrictOwner && !s.Request.Actor.Authenticated() {
		return nil, appErrors.Clonef(appErrors.ErrForbidden, "you need to be logged in to create '%s' records", schema.Name)
	}

	rec := models.NewRecord(schema.Name)
	for key, value := range ids {
		field, _ := schema.Field(key)
		switch {
		case key == models.FieldID:
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "'%s' with id %s not found", schema.Name, models.FormatValue(value))
		case value == nil:
		case field.Kind == models.FieldKindForeignKey:
			id, err := toInt64(value)
			if err != nil {
				return nil, appErrors.Clonef(appErrors.ErrCast, "'%s' is not a valid id for '%s'", models.FormatValue(value), key)
			}
			rec.Set(key, id)
		case field.Kind == models.FieldKindManyRelation:
			id, err := toInt64(value)
			if err != nil {
				return nil, appErrors.Clonef(appErrors.ErrCast, "'%s' is not a valid id for '%s'", models.FormatValue(value), key)
			}
			rec.AddRelated(key, id)
		default:
			normalized, err := normalizeChoice(field, value)
			if err != nil {
				return nil, err
			}
			casted, err := castValue(field, normalized)
			if err != nil {
				return nil, err
			}
			rec.Set(key, casted)
		}
	}
	r.ApplyDefaults(s, schema, rec, slugSource)

	if err := NewObjectHandle(schema, rec).Commit(s); err != nil {
		return nil, err
	}
	r.logger.Debug("related record created", zap.String("schema", schema.Name), zap.Int64("id", rec.ID))
	if reporter != nil {
		reporter.ReportChange(models.Change{
			Field:       schema.Name,
			NewValue:    s.Snapshot.Display(schema, rec),
			Description: fmt.Sprintf("created new '%s' '%s'", schema.Name, s.Snapshot.Display(schema, rec)),
		})
	}
	return rec, nil
}

// ApplyDefaults fills owner, status, visibility, slug and token on a new
// record. The owner is only set for authenticated actors.
func (r *RelatedResolver) ApplyDefaults(s *Session, schema *models.Schema, rec *models.Record, slugSource string) {
	actor := s.Request.Actor
	if schema.HasField(models.FieldOwner) && actor.Authenticated() {
		if _, set := rec.Ref(models.FieldOwner); !set {
			rec.Set(models.FieldOwner, actor.ID)
		}
	}
	if schema.HasField(models.FieldStatus) && rec.String(models.FieldStatus) == "" {
		rec.Set(models.FieldStatus, r.cfg.DefaultModelStatus)
	}
	if schema.HasField(models.FieldVisibility) && rec.String(models.FieldVisibility) == "" {
		rec.Set(models.FieldVisibility, r.cfg.DefaultModelVisibility)
	}
	if schema.HasField(models.FieldToken) && rec.String(models.FieldToken) == "" {
		rec.Set(models.FieldToken, uuid.NewString())
	}
	if schema.HasField(models.FieldSlug) && rec.String(models.FieldSlug) == "" {
		if slugSource == "" {
			slugSource = rec.String(schema.DisplayFieldName())
		}
		value := slug.Make(slugSource)
		if value == "" {
			value = strings.SplitN(uuid.NewString(), "-", 2)[0]
		}
		rec.Set(models.FieldSlug, value)
	}
}

// matchesIdentifiers compares case-insensitively for text and by casted
// value otherwise. A nil identifier matches an empty attribute.
func matchesIdentifiers(schema *models.Schema, rec *models.Record, ids map[string]interface{}) bool {
	for key, want := range ids {
		field, ok := schema.Field(key)
		if !ok {
			return false
		}
		if want == nil {
			if field.Kind == models.FieldKindForeignKey {
				if _, set := rec.Ref(key); set {
					return false
				}
				continue
			}
			if rec.String(key) != "" {
				return false
			}
			continue
		}
		switch field.Kind {
		case models.FieldKindForeignKey:
			id, set := rec.Ref(key)
			wantID, err := toInt64(want)
			if !set || err != nil || id != wantID {
				return false
			}
		case models.FieldKindManyRelation:
			wantID, err := toInt64(want)
			if err != nil || !rec.HasRelated(key, wantID) {
				return false
			}
		default:
			if !strings.EqualFold(castedString(field, rec.Get(key)), castedString(field, want)) {
				return false
			}
		}
	}
	return true
}

func castedString(field models.FieldSpec, v interface{}) string {
	if casted, err := castValue(field, v); err == nil {
		return models.FormatValue(casted)
	}
	return models.FormatValue(v)
}

func describeIdentifiers(ids map[string]interface{}) string {
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, models.FormatValue(ids[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
