package service

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/config"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

// SchemaRegistry maps model names to schema descriptors. It is populated at
// startup and read concurrently afterwards.
type SchemaRegistry struct {
	mu                sync.RWMutex
	schemas           map[string]*models.Schema
	order             []string
	blockedModels     map[string]struct{}
	blockedNamespaces []string
	logger            *zap.Logger
}

// NewSchemaRegistry constructs an empty registry honouring the model blocklists.
func NewSchemaRegistry(cfg config.DispatchConfig, logger *zap.Logger) *SchemaRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	blocked := make(map[string]struct{}, len(cfg.BlockedModels))
	for _, name := range cfg.BlockedModels {
		blocked[strings.ToLower(name)] = struct{}{}
	}
	namespaces := make([]string, 0, len(cfg.BlockedNamespaces))
	for _, ns := range cfg.BlockedNamespaces {
		namespaces = append(namespaces, strings.ToLower(ns))
	}
	return &SchemaRegistry{
		schemas:           make(map[string]*models.Schema),
		blockedModels:     blocked,
		blockedNamespaces: namespaces,
		logger:            logger,
	}
}

// Register adds a schema. Registering the same descriptor twice is a no-op;
// registering a different descriptor under the same qualified name fails.
func (r *SchemaRegistry) Register(schema *models.Schema) error {
	if schema == nil {
		return appErrors.Clone(appErrors.ErrValidation, "nil schema provided")
	}
	if err := schema.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnsupportedFieldType.Code, appErrors.ErrUnsupportedFieldType.Status, "invalid schema declaration")
	}
	key := schema.QualifiedName()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.schemas[key]; ok {
		if existing == schema {
			return nil
		}
		return appErrors.Clonef(appErrors.ErrConflictingRegistration, "schema %s already registered", key)
	}
	r.schemas[key] = schema
	r.order = append(r.order, key)
	r.logger.Debug("schema registered", zap.String("schema", key), zap.Int("fields", len(schema.Fields)))
	return nil
}

// MustRegister registers every schema and panics on failure.
func (r *SchemaRegistry) MustRegister(schemas ...*models.Schema) {
	for _, schema := range schemas {
		if err := r.Register(schema); err != nil {
			panic(err)
		}
	}
}

// Resolve maps a request supplied model name to a schema. Only the first
// comma separated part is considered. Exact names win over plural labels.
func (r *SchemaRegistry) Resolve(name string) (*models.Schema, error) {
	name = normalizeModelName(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no model given")
	}

	schema, err := r.match(name)
	if err != nil {
		return nil, err
	}
	if r.blocked(schema) {
		return nil, appErrors.Clonef(appErrors.ErrForbidden, "model '%s' is not allowed", name)
	}
	return schema, nil
}

// Lookup finds a schema by name without applying the blocklists. It is used
// for relation targets declared by already resolved schemas.
func (r *SchemaRegistry) Lookup(name string) (*models.Schema, error) {
	return r.match(normalizeModelName(name))
}

// Names returns the qualified names of every schema that Resolve would serve.
func (r *SchemaRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, key := range r.order {
		if !r.blocked(r.schemas[key]) {
			names = append(names, key)
		}
	}
	sort.Strings(names)
	return names
}

func (r *SchemaRegistry) match(name string) (*models.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if schema, ok := r.schemas[name]; ok {
		return schema, nil
	}

	var singular, plural []*models.Schema
	for _, key := range r.order {
		schema := r.schemas[key]
		if schema.Name == name {
			singular = append(singular, schema)
		}
		if schema.PluralName() == name {
			plural = append(plural, schema)
		}
	}

	candidates := singular
	if len(candidates) == 0 {
		candidates = plural
	}
	switch len(candidates) {
	case 0:
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "model '%s' not found", name)
	case 1:
		return candidates[0], nil
	default:
		return nil, appErrors.Clonef(appErrors.ErrAmbiguous, "multiple models found for '%s'", name)
	}
}

func (r *SchemaRegistry) blocked(schema *models.Schema) bool {
	if _, ok := r.blockedModels[schema.Name]; ok {
		return true
	}
	if _, ok := r.blockedModels[schema.QualifiedName()]; ok {
		return true
	}
	app := strings.ToLower(schema.App)
	for _, ns := range r.blockedNamespaces {
		if app == ns || strings.HasPrefix(app, ns+".") {
			return true
		}
	}
	return false
}

func normalizeModelName(name string) string {
	if idx := strings.Index(name, ","); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToLower(strings.TrimSpace(name))
}
