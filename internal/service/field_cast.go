package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

var valueValidator = validator.New()

// parseBool accepts true/1/yes/on and false/0/no/off, ignoring case.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on", "y", "t":
		return true, nil
	case "false", "0", "no", "off", "n", "f":
		return false, nil
	}
	return false, appErrors.Clonef(appErrors.ErrValidation, "'%s' is not a valid boolean", raw)
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// castValue converts raw input into the native value of a simple field.
// Blank input becomes "" for text types and nil otherwise.
func castValue(field models.FieldSpec, raw interface{}) (interface{}, error) {
	typ := field.Type
	if field.Kind == models.FieldKindBool {
		typ = models.TypeBool
	}
	if isBlank(raw) {
		if typ.IsText() {
			return "", nil
		}
		return nil, nil
	}
	fail := func(err error) error {
		return appErrors.Wrap(err, appErrors.ErrCast.Code, appErrors.ErrCast.Status,
			"cannot convert '"+models.FormatValue(raw)+"' to "+string(typ)+" for field '"+field.Name+"'")
	}

	switch typ {
	case models.TypeString, models.TypeText:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return nil, fail(err)
		}
		return s, nil
	case models.TypeEmail, models.TypeURL:
		s := strings.TrimSpace(models.FormatValue(raw))
		tag := "email"
		if typ == models.TypeURL {
			tag = "url"
		}
		if err := valueValidator.Var(s, tag); err != nil {
			return nil, fail(err)
		}
		return s, nil
	case models.TypeInt:
		n, err := toInt64(raw)
		if err != nil {
			return nil, fail(err)
		}
		return n, nil
	case models.TypeFloat:
		n, err := cast.ToFloat64E(trimString(raw))
		if err != nil {
			return nil, fail(err)
		}
		return n, nil
	case models.TypeBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		b, err := parseBool(models.FormatValue(raw))
		if err != nil {
			return nil, err
		}
		return b, nil
	case models.TypeDate:
		t, err := cast.ToTimeE(trimString(raw))
		if err != nil {
			return nil, fail(err)
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case models.TypeDateTime:
		t, err := cast.ToTimeE(trimString(raw))
		if err != nil {
			return nil, fail(err)
		}
		return t.UTC().Truncate(time.Second), nil
	case models.TypeJSON:
		s, ok := raw.(string)
		if !ok {
			return raw, nil
		}
		var out interface{}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fail(err)
		}
		return out, nil
	case models.TypeUUID:
		id, err := uuid.Parse(strings.TrimSpace(models.FormatValue(raw)))
		if err != nil {
			return nil, fail(err)
		}
		return id.String(), nil
	default:
		return nil, appErrors.Clonef(appErrors.ErrUnsupportedFieldType, "field '%s' has unsupported type '%s'", field.Name, typ)
	}
}

// toInt64 parses strings in base 10; cast alone would read "010" as octal.
func toInt64(raw interface{}) (int64, error) {
	if s, ok := raw.(string); ok {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	return cast.ToInt64E(raw)
}

func trimString(raw interface{}) interface{} {
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return raw
}

// normalizeChoice maps a label or stored key to the stored key.
func normalizeChoice(field models.FieldSpec, value interface{}) (interface{}, error) {
	if len(field.Choices) == 0 || isBlank(value) {
		return value, nil
	}
	s := models.FormatValue(value)
	for _, choice := range field.Choices {
		if choice.Value == s {
			return choice.Value, nil
		}
	}
	for _, choice := range field.Choices {
		if strings.EqualFold(choice.Label, s) || strings.EqualFold(choice.Value, s) {
			return choice.Value, nil
		}
	}
	return nil, appErrors.Clonef(appErrors.ErrInvalidChoice, "'%s' is not a valid choice for '%s'", s, field.Name)
}
