package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/config"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

// protectedFields are never exposed through a descriptor.
var protectedFields = []string{
	models.FieldID, models.FieldSlug, models.FieldStatus,
	"password", "secret_key", "api_key", "token", "access_token",
	"refresh_token", "private_key", "certificate",
}

// FieldGate attaches descriptors after the security check.
type FieldGate struct {
	protected map[string]struct{}
}

// NewFieldGate builds the protected set from the built-in names and
// cfg.ProtectedFields.
func NewFieldGate(cfg config.DispatchConfig) *FieldGate {
	protected := make(map[string]struct{}, len(protectedFields)+len(cfg.ProtectedFields))
	for _, name := range protectedFields {
		protected[name] = struct{}{}
	}
	for _, name := range cfg.ProtectedFields {
		protected[strings.ToLower(name)] = struct{}{}
	}
	return &FieldGate{protected: protected}
}

// Check refuses protected and disallowed names.
func (g *FieldGate) Check(schema *models.Schema, name string) error {
	_, protected := g.protected[strings.ToLower(name)]
	if field, ok := schema.Field(name); ok && field.Protected {
		protected = true
	}
	if protected || schema.Disallowed(name) {
		return appErrors.Clonef(appErrors.ErrForbidden, "access to field '%s' of '%s' is not allowed", name, schema.Name)
	}
	return nil
}

// Attach binds name on rec. The name must be a field, a property or an
// ajax-callable function of schema.
func (g *FieldGate) Attach(schema *models.Schema, rec *models.Record, name string) (*FieldDescriptor, error) {
	if err := g.Check(schema, name); err != nil {
		return nil, err
	}
	d := &FieldDescriptor{Name: name, schema: schema, record: rec}
	if field, ok := schema.Field(name); ok {
		d.spec = field
		return d, nil
	}
	if prop, ok := schema.Property(name); ok {
		d.property = &prop
		return d, nil
	}
	if fn, ok := schema.Function(name); ok {
		if !fn.AjaxCallable {
			return nil, appErrors.Clonef(appErrors.ErrForbidden, "function '%s' of '%s' is not callable", name, schema.Name)
		}
		d.function = &fn
		return d, nil
	}
	return nil, appErrors.Clonef(appErrors.ErrNotFound, "field '%s' not found on '%s'", name, schema.Name)
}

// FieldDescriptor wraps one attribute of one record for a single request.
type FieldDescriptor struct {
	Name string

	schema   *models.Schema
	record   *models.Record
	spec     models.FieldSpec
	property *models.PropertySpec
	function *models.FunctionSpec

	cached bool
	value  interface{}
}

// Spec returns the declared field; zero for properties and functions.
func (d *FieldDescriptor) Spec() models.FieldSpec { return d.spec }

func (d *FieldDescriptor) IsSimple() bool {
	return d.spec.Kind == models.FieldKindSimple && d.spec.Type != models.TypeBool
}

func (d *FieldDescriptor) IsBool() bool {
	return d.spec.Kind == models.FieldKindBool || (d.spec.Kind == models.FieldKindSimple && d.spec.Type == models.TypeBool)
}

func (d *FieldDescriptor) IsForeignKey() bool { return d.spec.Kind == models.FieldKindForeignKey }
func (d *FieldDescriptor) IsRelated() bool    { return d.spec.Kind == models.FieldKindManyRelation }
func (d *FieldDescriptor) IsFunction() bool   { return d.function != nil }
func (d *FieldDescriptor) IsProperty() bool   { return d.property != nil }

// Kind returns the update category, failing for read-only attributes.
func (d *FieldDescriptor) Kind() (models.FieldKind, error) {
	switch {
	case d.IsBool():
		return models.FieldKindBool, nil
	case d.IsSimple():
		return models.FieldKindSimple, nil
	case d.IsForeignKey():
		return models.FieldKindForeignKey, nil
	case d.IsRelated():
		return models.FieldKindManyRelation, nil
	}
	return 0, appErrors.Clonef(appErrors.ErrUnsupportedFieldType, "field '%s' of '%s' cannot be updated", d.Name, d.schema.Name)
}

// Value returns the live value: the related record for a foreign key, the
// related records for a many-relation and the result of a function call.
// The result is cached for the descriptor's lifetime.
func (d *FieldDescriptor) Value(s *Session) (interface{}, error) {
	if d.cached {
		return d.value, nil
	}
	var (
		v   interface{}
		err error
	)
	switch {
	case d.function != nil:
		v, err = callFunction(*d.function, d.record, s.Request.Actor)
	case d.property != nil:
		v = d.property.Get(d.record)
	case d.IsForeignKey():
		var related []*models.Record
		related, err = s.Snapshot.Related(d.record, d.spec)
		if err == nil && len(related) > 0 {
			v = related[0]
		}
	case d.IsRelated():
		v, err = s.Snapshot.Related(d.record, d.spec)
	default:
		v = d.record.Get(d.Name)
	}
	if err != nil {
		return nil, err
	}
	d.cached, d.value = true, v
	return v, nil
}

func (d *FieldDescriptor) invalidate() {
	d.cached, d.value = false, nil
}

// Display renders the current value for messages and ledgers.
func (d *FieldDescriptor) Display(s *Session) string {
	v, err := d.Value(s)
	if err != nil {
		return ""
	}
	return displayValue(s, d.spec, v)
}

func displayValue(s *Session, spec models.FieldSpec, v interface{}) string {
	switch typed := v.(type) {
	case *models.Record:
		if typed == nil {
			return ""
		}
		target, err := s.Snapshot.Schema(typed.Schema)
		if err != nil {
			return models.FormatValue(typed.ID)
		}
		return s.Snapshot.Display(target, typed)
	case []*models.Record:
		parts := make([]string, 0, len(typed))
		for _, rec := range typed {
			parts = append(parts, displayValue(s, spec, rec))
		}
		return strings.Join(parts, ", ")
	}
	return spec.Label(models.FormatValue(v))
}

// UpdateSimple casts raw, maps choice labels to stored keys and writes the
// value when its string form differs from the current one.
func (d *FieldDescriptor) UpdateSimple(s *Session, reporter ChangeReporter, raw interface{}) (bool, error) {
	if !d.IsSimple() && !d.IsBool() {
		return false, appErrors.Clonef(appErrors.ErrUnsupportedFieldType, "field '%s' is not a simple field", d.Name)
	}
	normalized, err := normalizeChoice(d.spec, raw)
	if err != nil {
		return false, err
	}
	next, err := castValue(d.spec, normalized)
	if err != nil {
		return false, err
	}
	current := d.record.Get(d.Name)
	if casted, err := castValue(d.spec, current); err == nil {
		current = casted
	}

	oldStr, newStr := models.FormatValue(current), models.FormatValue(next)
	if oldStr == newStr {
		s.Messages.Debug(fmt.Sprintf("field '%s' is unchanged", d.Name))
		return false, nil
	}
	d.record.Set(d.Name, next)
	d.invalidate()
	reporter.ReportChange(models.Change{
		Field:    d.Name,
		OldValue: d.spec.Label(oldStr),
		NewValue: d.spec.Label(newStr),
	})
	return true, nil
}

// UpdateBool sets a boolean. A nil raw toggles the stored value.
func (d *FieldDescriptor) UpdateBool(s *Session, reporter ChangeReporter, raw *string) (bool, error) {
	if !d.IsBool() {
		return false, appErrors.Clonef(appErrors.ErrUnsupportedFieldType, "field '%s' is not a boolean", d.Name)
	}
	var next bool
	if raw == nil {
		current, err := castValue(d.spec, d.record.Get(d.Name))
		if err != nil {
			return false, err
		}
		b, _ := current.(bool)
		next = !b
	} else {
		b, err := parseBool(*raw)
		if err != nil {
			return false, appErrors.Clonef(appErrors.ErrValidation, "'%s' is not a valid value for boolean field '%s'", *raw, d.Name)
		}
		next = b
	}
	return d.UpdateSimple(s, reporter, next)
}

// UpdateForeignKey points the relation at the record ids resolve to.
// Empty ids clear the relation.
func (d *FieldDescriptor) UpdateForeignKey(s *Session, reporter ChangeReporter, resolver *RelatedResolver, ids map[string]interface{}) (bool, error) {
	if !d.IsForeignKey() {
		return false, appErrors.Clonef(appErrors.ErrUnsupportedFieldType, "field '%s' is not a foreign key", d.Name)
	}
	target, err := s.Snapshot.Schema(d.spec.Related)
	if err != nil {
		return false, err
	}
	var next *models.Record
	if len(ids) > 0 {
		next, err = resolver.ResolveOrCreate(s, reporter, target, ids, models.FieldKindForeignKey, 0)
		if err != nil {
			return false, err
		}
	}

	oldID, hadOld := d.record.Ref(d.Name)
	switch {
	case next == nil && !hadOld:
		return false, nil
	case next != nil && hadOld && next.ID == oldID:
		s.Messages.Debug(fmt.Sprintf("field '%s' is unchanged", d.Name))
		return false, nil
	}

	oldDisplay := d.Display(s)
	newDisplay := ""
	if next != nil {
		d.record.Set(d.Name, next.ID)
		newDisplay = s.Snapshot.Display(target, next)
	} else {
		d.record.Set(d.Name, nil)
	}
	d.invalidate()
	reporter.ReportChange(models.Change{Field: d.Name, OldValue: oldDisplay, NewValue: newDisplay})
	return true, nil
}

// UpdateRelated toggles membership of the resolved record in the
// many-relation. The owning record must already be stored.
func (d *FieldDescriptor) UpdateRelated(s *Session, reporter ChangeReporter, resolver *RelatedResolver, ids map[string]interface{}) (bool, error) {
	if !d.IsRelated() {
		return false, appErrors.Clonef(appErrors.ErrUnsupportedFieldType, "field '%s' is not a many-relation", d.Name)
	}
	if d.record.IsNew() {
		return false, appErrors.Clonef(appErrors.ErrValidation, "'%s' must be saved before '%s' can change", d.schema.Name, d.Name)
	}
	target, err := s.Snapshot.Schema(d.spec.Related)
	if err != nil {
		return false, err
	}
	other, err := resolver.ResolveOrCreate(s, reporter, target, ids, models.FieldKindManyRelation, 0)
	if err != nil {
		return false, err
	}

	store := s.Snapshot.Store()
	label := s.Snapshot.Display(target, other)
	change := models.Change{Field: d.Name}
	if d.record.HasRelated(d.Name, other.ID) {
		if err := store.RemoveRelation(s.Context(), d.record, d.Name, other.ID); err != nil {
			return false, err
		}
		change.OldValue = label
		change.Description = fmt.Sprintf("removed '%s' from '%s'", label, d.Name)
	} else {
		if err := store.AddRelation(s.Context(), d.record, d.Name, other.ID); err != nil {
			return false, err
		}
		change.NewValue = label
		change.Description = fmt.Sprintf("added '%s' to '%s'", label, d.Name)
	}
	s.Snapshot.MarkWritten(d.record.Schema)
	d.invalidate()
	reporter.ReportChange(change)
	return true, nil
}
