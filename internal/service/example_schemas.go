package service

import (
	"strings"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/config"
)

// ExampleSchemas returns the demo record types served by the gateway.
func ExampleSchemas(cfg config.DispatchConfig) []*models.Schema {
	userModel := cfg.UserModel
	if userModel == "" {
		userModel = "user"
	}
	familyField := cfg.FamilyField
	if familyField == "" {
		familyField = "family"
	}

	withBase := func(fields ...models.FieldSpec) []models.FieldSpec {
		return append(fields, models.BaseFields(userModel)...)
	}

	user := &models.Schema{
		Name:         userModel,
		App:          "auth",
		DisplayField: "username",
		Fields: []models.FieldSpec{
			{Name: "username", Kind: models.FieldKindSimple, Type: models.TypeString},
			{Name: "email", Kind: models.FieldKindSimple, Type: models.TypeEmail},
			{Name: "password", Kind: models.FieldKindSimple, Type: models.TypeString, Protected: true},
			{Name: "is_active", Kind: models.FieldKindBool},
			{Name: familyField, Kind: models.FieldKindManyRelation, Related: "family"},
		},
		DisallowAccessFields: []string{"email"},
	}

	family := &models.Schema{
		Name:   "family",
		Plural: "families",
		Fields: withBase(
			models.FieldSpec{Name: models.FieldName, Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: models.FieldSlug, Kind: models.FieldKindSimple, Type: models.TypeString},
		),
		DisallowAccessFields: models.BaseDisallowedFields,
	}

	category := &models.Schema{
		Name:   "category",
		Plural: "categories",
		Fields: withBase(
			models.FieldSpec{Name: models.FieldName, Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: models.FieldSlug, Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: models.FieldParent, Kind: models.FieldKindForeignKey, Related: "category"},
			models.FieldSpec{Name: "description", Kind: models.FieldKindSimple, Type: models.TypeText},
			models.FieldSpec{Name: "featured", Kind: models.FieldKindBool},
			models.VisibilityField(),
		),
		Properties: []models.PropertySpec{
			{Name: "initial", Get: func(rec *models.Record) interface{} {
				name := []rune(rec.String(models.FieldName))
				if len(name) == 0 {
					return ""
				}
				return strings.ToUpper(string(name[0]))
			}},
		},
		DisallowAccessFields: models.BaseDisallowedFields,
	}

	tag := &models.Schema{
		Name: "tag",
		Fields: withBase(
			models.FieldSpec{Name: models.FieldName, Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: models.FieldSlug, Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: models.FieldToken, Kind: models.FieldKindSimple, Type: models.TypeUUID},
			models.VisibilityField(),
		),
		DisallowAccessFields: models.BaseDisallowedFields,
	}

	comment := &models.Schema{
		Name:         "comment",
		DisplayField: "title",
		Fields: withBase(
			models.FieldSpec{Name: "title", Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: "body", Kind: models.FieldKindSimple, Type: models.TypeText},
			models.FieldSpec{Name: models.FieldSlug, Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: models.FieldToken, Kind: models.FieldKindSimple, Type: models.TypeUUID},
			models.FieldSpec{Name: "rating", Kind: models.FieldKindSimple, Type: models.TypeInt, Choices: []models.Choice{
				{Value: "1", Label: "Poor"}, {Value: "2", Label: "Fair"}, {Value: "3", Label: "Good"},
			}},
			models.FieldSpec{Name: "published_on", Kind: models.FieldKindSimple, Type: models.TypeDate},
			models.FieldSpec{Name: "pinned", Kind: models.FieldKindBool},
			models.FieldSpec{Name: "category", Kind: models.FieldKindForeignKey, Related: "category"},
			models.FieldSpec{Name: "tags", Kind: models.FieldKindManyRelation, Related: "tag"},
			models.FieldSpec{Name: "content_type", Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: "object_id", Kind: models.FieldKindSimple, Type: models.TypeInt},
			models.VisibilityField(),
		),
		Functions: []models.FunctionSpec{
			{
				Name:         "word_count",
				Searchable:   true,
				AjaxCallable: true,
				Call: func(rec *models.Record) (interface{}, error) {
					return len(strings.Fields(rec.String("body"))), nil
				},
			},
			{
				Name:         "is_mine",
				AjaxCallable: true,
				CallWithActor: func(rec *models.Record, actor models.Actor) (interface{}, error) {
					owner, ok := rec.Ref(models.FieldOwner)
					return ok && actor.Authenticated() && owner == actor.ID, nil
				},
			},
		},
		DisallowAccessFields: append([]string{"content_type", "object_id"}, models.BaseDisallowedFields...),
	}

	note := &models.Schema{
		Name: "note",
		Fields: withBase(
			models.FieldSpec{Name: models.FieldName, Kind: models.FieldKindSimple, Type: models.TypeString},
			models.FieldSpec{Name: "body", Kind: models.FieldKindSimple, Type: models.TypeText},
		),
		DisallowAccessFields: models.BaseDisallowedFields,
		RestrictReadAccess:   models.RestrictOwner,
	}

	session := &models.Schema{
		Name: "session",
		App:  "framework",
		Fields: []models.FieldSpec{
			{Name: "session_key", Kind: models.FieldKindSimple, Type: models.TypeString},
		},
	}

	return []*models.Schema{user, family, category, tag, comment, note, session}
}

// RegisterExampleSchemas registers ExampleSchemas on registry.
func RegisterExampleSchemas(registry *SchemaRegistry, cfg config.DispatchConfig) error {
	for _, schema := range ExampleSchemas(cfg) {
		if err := registry.Register(schema); err != nil {
			return err
		}
	}
	return nil
}
