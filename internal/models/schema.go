package models

import (
	"fmt"
	"strings"
)

// Well-known field names shared by the dispatcher.
const (
	FieldID           = "id"
	FieldSlug         = "slug"
	FieldToken        = "token"
	FieldName         = "name"
	FieldStatus       = "status"
	FieldVisibility   = "visibility"
	FieldOwner        = "user"
	FieldParent       = "parent"
	FieldDateCreated  = "date_created"
	FieldDateModified = "date_modified"
)

// FieldKind classifies how a field is read and updated.
type FieldKind int

const (
	FieldKindSimple FieldKind = iota + 1
	FieldKindBool
	FieldKindForeignKey
	FieldKindManyRelation
)

func (k FieldKind) String() string {
	switch k {
	case FieldKindSimple:
		return "simple"
	case FieldKindBool:
		return "bool"
	case FieldKindForeignKey:
		return "foreign_key"
	case FieldKindManyRelation:
		return "related"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k FieldKind) Valid() bool {
	return k >= FieldKindSimple && k <= FieldKindManyRelation
}

// ValueType is the native type a simple field casts input into.
type ValueType string

const (
	TypeString   ValueType = "string"
	TypeText     ValueType = "text"
	TypeEmail    ValueType = "email"
	TypeURL      ValueType = "url"
	TypeInt      ValueType = "int"
	TypeFloat    ValueType = "float"
	TypeBool     ValueType = "bool"
	TypeDate     ValueType = "date"
	TypeDateTime ValueType = "datetime"
	TypeJSON     ValueType = "json"
	TypeUUID     ValueType = "uuid"
)

// IsText reports whether values of this type are free text.
func (t ValueType) IsText() bool {
	switch t {
	case TypeString, TypeText, TypeEmail, TypeURL:
		return true
	}
	return false
}

// Choice maps a stored value to its display label.
type Choice struct {
	Value string
	Label string
}

// FieldSpec describes one declared attribute of a schema.
type FieldSpec struct {
	Name      string
	Kind      FieldKind
	Type      ValueType
	Choices   []Choice
	Related   string
	Protected bool
}

// IsRelation reports whether the field points at other records.
func (f FieldSpec) IsRelation() bool {
	return f.Kind == FieldKindForeignKey || f.Kind == FieldKindManyRelation
}

// IsText reports whether the field holds searchable free text.
func (f FieldSpec) IsText() bool {
	return f.Kind == FieldKindSimple && f.Type.IsText()
}

// Label returns the display label for a stored value, or the value itself.
func (f FieldSpec) Label(value string) string {
	for _, choice := range f.Choices {
		if choice.Value == value {
			return choice.Label
		}
	}
	return value
}

// PropertySpec is a read-only computed attribute.
type PropertySpec struct {
	Name string
	Get  func(rec *Record) interface{}
}

// FunctionSpec is a callable member exposed to the dispatcher. CallWithActor
// takes precedence over Call when both are set.
type FunctionSpec struct {
	Name          string
	Searchable    bool
	AjaxCallable  bool
	Call          func(rec *Record) (interface{}, error)
	CallWithActor func(rec *Record, actor Actor) (interface{}, error)
}

// RestrictMode controls read restrictions declared by a schema.
type RestrictMode string

const (
	RestrictNone  RestrictMode = ""
	RestrictOwner RestrictMode = "user"
)

// Schema is the immutable description of a record type.
type Schema struct {
	Name                 string
	App                  string
	Plural               string
	DisplayField         string
	Fields               []FieldSpec
	Properties           []PropertySpec
	Functions            []FunctionSpec
	DisallowAccessFields []string
	RestrictReadAccess   RestrictMode
}

var idField = FieldSpec{Name: FieldID, Kind: FieldKindSimple, Type: TypeInt}

// QualifiedName returns "app.name".
func (s *Schema) QualifiedName() string {
	if s.App == "" {
		return s.Name
	}
	return strings.ToLower(s.App) + "." + s.Name
}

// PluralName returns the plural label, defaulting to name + "s".
func (s *Schema) PluralName() string {
	if s.Plural != "" {
		return strings.ToLower(s.Plural)
	}
	return s.Name + "s"
}

// Field returns the named field; id is always present.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	if name == FieldID {
		return idField, true
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// HasField reports whether name is a declared field.
func (s *Schema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Property returns the named read-only property.
func (s *Schema) Property(name string) (PropertySpec, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySpec{}, false
}

// Function returns the named callable member.
func (s *Schema) Function(name string) (FunctionSpec, bool) {
	for _, fn := range s.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return FunctionSpec{}, false
}

// TextFields lists the free-text fields in declaration order.
func (s *Schema) TextFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.Fields {
		if f.IsText() {
			out = append(out, f)
		}
	}
	return out
}

// Disallowed reports whether the schema hides name from the dispatcher.
func (s *Schema) Disallowed(name string) bool {
	for _, f := range s.DisallowAccessFields {
		if f == name {
			return true
		}
	}
	return false
}

// DisplayFieldName returns the field used to describe a record, "name" unless configured.
func (s *Schema) DisplayFieldName() string {
	if s.DisplayField != "" {
		return s.DisplayField
	}
	return FieldName
}

// HasSelfParent reports whether the schema declares a parent relation to itself.
func (s *Schema) HasSelfParent() bool {
	f, ok := s.Field(FieldParent)
	return ok && f.Kind == FieldKindForeignKey && f.Related == s.Name
}

// Validate rejects unclassifiable or incomplete field declarations.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is empty")
	}
	if s.Name != strings.ToLower(s.Name) {
		return fmt.Errorf("schema name %q must be lowercase", s.Name)
	}
	seen := map[string]struct{}{FieldID: {}}
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field with empty name", s.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %s: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if !f.Kind.Valid() {
			return fmt.Errorf("schema %s: field %q has unsupported kind %s", s.Name, f.Name, f.Kind)
		}
		if f.IsRelation() && f.Related == "" {
			return fmt.Errorf("schema %s: relation %q has no related schema", s.Name, f.Name)
		}
		if f.Kind == FieldKindSimple && f.Type == "" {
			return fmt.Errorf("schema %s: field %q has no value type", s.Name, f.Name)
		}
	}
	return nil
}

// Status codes carried by records with a status field.
const (
	StatusConcept   = "c"
	StatusPublished = "p"
	StatusRevoked   = "r"
	StatusDeleted   = "x"
)

// Visibility codes carried by records with a visibility field.
const (
	VisibilityPublic    = "p"
	VisibilityCommunity = "c"
	VisibilityFamily    = "f"
	VisibilityPrivate   = "q"
)

// StatusChoices lists the record lifecycle states.
var StatusChoices = []Choice{
	{Value: StatusConcept, Label: "Concept"},
	{Value: StatusPublished, Label: "Published"},
	{Value: StatusRevoked, Label: "Revoked"},
	{Value: StatusDeleted, Label: "Deleted"},
}

// VisibilityChoices lists who may see a record.
var VisibilityChoices = []Choice{
	{Value: VisibilityPublic, Label: "Public"},
	{Value: VisibilityCommunity, Label: "Community"},
	{Value: VisibilityFamily, Label: "Family"},
	{Value: VisibilityPrivate, Label: "Private"},
}

// BaseDisallowedFields are hidden on every schema built with BaseFields.
var BaseDisallowedFields = []string{FieldID, FieldSlug, FieldDateCreated, FieldDateModified}

// BaseFields returns the status, timestamps and owner fields most schemas share.
func BaseFields(userModel string) []FieldSpec {
	return []FieldSpec{
		{Name: FieldStatus, Kind: FieldKindSimple, Type: TypeString, Choices: StatusChoices},
		{Name: FieldDateCreated, Kind: FieldKindSimple, Type: TypeDateTime},
		{Name: FieldDateModified, Kind: FieldKindSimple, Type: TypeDateTime},
		{Name: FieldOwner, Kind: FieldKindForeignKey, Related: userModel},
	}
}

// VisibilityField declares the visibility attribute.
func VisibilityField() FieldSpec {
	return FieldSpec{Name: FieldVisibility, Kind: FieldKindSimple, Type: TypeString, Choices: VisibilityChoices}
}
