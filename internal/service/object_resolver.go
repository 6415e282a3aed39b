package service

import (
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

type identifierGroup struct {
	field string
	keys  []string
}

// identifierAliases lists the request keys accepted for each identifier
// type, in lookup order.
var identifierAliases = []identifierGroup{
	{field: models.FieldID, keys: []string{"object_id", "obj_id", "object-id", "obj-id", "objectid", "objid"}},
	{field: models.FieldSlug, keys: []string{"object_slug", "obj_slug", "object-slug", "obj-slug", "objectslug", "objslug"}},
	{field: models.FieldToken, keys: []string{"object_token", "obj_token", "object-token", "obj-token", "objecttoken", "objtoken"}},
}

// minIdentifiers is the number of independent identifier types that must
// agree before an object is selected.
const minIdentifiers = 2

// ObjectResolver selects the single record a request targets.
type ObjectResolver struct {
	filter *FilterEngine
	logger *zap.Logger
}

// NewObjectResolver constructs a resolver over filter.
func NewObjectResolver(filter *FilterEngine, logger *zap.Logger) *ObjectResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectResolver{filter: filter, logger: logger}
}

// Identifiers collects identifier values by field. It returns nil when the
// request names no object at all and a validation error when fewer than
// two identifier types remain usable for schema.
func (r *ObjectResolver) Identifiers(s *Session, schema *models.Schema) (map[string]string, error) {
	ids := make(map[string]string, len(identifierAliases))
	for _, group := range identifierAliases {
		for _, key := range group.keys {
			if v, ok := s.Request.Get(key); ok && strings.TrimSpace(v) != "" {
				ids[group.field] = strings.TrimSpace(v)
				break
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if slugValue, ok := ids[models.FieldSlug]; ok && !schema.HasField(models.FieldSlug) {
		delete(ids, models.FieldSlug)
		if _, hasToken := ids[models.FieldToken]; !hasToken && schema.HasField(models.FieldToken) {
			ids[models.FieldToken] = slugValue
		}
	}
	for field := range ids {
		if !schema.HasField(field) {
			r.logger.Debug("identifier dropped", zap.String("schema", schema.Name), zap.String("field", field))
			delete(ids, field)
		}
	}
	if len(ids) < minIdentifiers {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "at least two identifiers are required to select a '%s'", schema.Name)
	}
	return ids, nil
}

// Resolve returns the one visible record matching every identifier. A
// record that exists but is filtered out yields ErrPermissionDenied.
func (r *ObjectResolver) Resolve(s *Session, schema *models.Schema, ids map[string]string) (*models.Record, error) {
	if len(ids) < minIdentifiers {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "at least two identifiers are required to select a '%s'", schema.Name)
	}
	lookup := make(map[string]interface{}, len(ids))
	for k, v := range ids {
		lookup[k] = v
	}
	match := func(rec *models.Record) bool { return matchesIdentifiers(schema, rec, lookup) }

	all, err := s.Snapshot.All(schema)
	if err != nil {
		return nil, err
	}
	visible, err := r.filter.Filter(s, all, FilterOptions{SuppressSearch: true, AllowPrivileged: true})
	if err != nil {
		return nil, err
	}
	matches := visible.Filter(match)
	switch matches.Len() {
	case 1:
		return matches.Records[0], nil
	case 0:
	default:
		return nil, appErrors.Clonef(appErrors.ErrAmbiguous, "%d '%s' records match %s", matches.Len(), schema.Name, describeIdentifiers(lookup))
	}
	if all.Filter(match).Len() > 0 {
		return nil, appErrors.Clonef(appErrors.ErrPermissionDenied, "this '%s' is not available", schema.Name)
	}
	return nil, appErrors.Clonef(appErrors.ErrNotFound, "'%s' matching %s not found", schema.Name, describeIdentifiers(lookup))
}
