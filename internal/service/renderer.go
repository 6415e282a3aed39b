package service

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/export"
)

// Render formats.
const (
	FormatHTML = "html"
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

// Attachment is a rendered download that replaces the JSON reply.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Renderer turns fields, objects and listings into response payloads.
type Renderer interface {
	RenderField(s *Session, d *FieldDescriptor, format string) (interface{}, error)
	RenderObject(s *Session, h *ObjectHandle, format string) (interface{}, error)
	RenderModel(s *Session, coll Collection, format string) (interface{}, error)
}

// DefaultRenderer renders json values, escaped html and plain text.
// Listings may also be exported as csv or pdf.
type DefaultRenderer struct {
	gate           *FieldGate
	removeNewlines bool
	logger         *zap.Logger
}

// NewDefaultRenderer constructs the default renderer. Fields refused by
// gate are left out of object views.
func NewDefaultRenderer(gate *FieldGate, removeNewlines bool, logger *zap.Logger) *DefaultRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRenderer{gate: gate, removeNewlines: removeNewlines, logger: logger}
}

// RenderField renders a single attribute.
func (r *DefaultRenderer) RenderField(s *Session, d *FieldDescriptor, format string) (interface{}, error) {
	v, err := d.Value(s)
	if err != nil {
		return nil, err
	}
	return r.renderValue(s, d.Spec(), v, format), nil
}

// RenderObject renders every accessible field of the record.
func (r *DefaultRenderer) RenderObject(s *Session, h *ObjectHandle, format string) (interface{}, error) {
	fields := make(map[string]interface{}, len(h.Schema.Fields))
	for _, field := range h.Schema.Fields {
		d, err := r.gate.Attach(h.Schema, h.Record, field.Name)
		if err != nil {
			continue
		}
		value, err := r.RenderField(s, d, format)
		if err != nil {
			r.logger.Debug("object field skipped", zap.String("schema", h.Schema.Name), zap.String("field", field.Name), zap.Error(err))
			s.Messages.Warning(fmt.Sprintf("could not render field '%s'", field.Name))
			continue
		}
		fields[field.Name] = value
	}
	return map[string]interface{}{
		"id":      h.Record.ID,
		"display": r.text(s.Snapshot.Display(h.Schema, h.Record), format),
		"fields":  fields,
	}, nil
}

// RenderModel renders a listing, or an Attachment for csv and pdf.
func (r *DefaultRenderer) RenderModel(s *Session, coll Collection, format string) (interface{}, error) {
	if exporter, ok := export.ForFormat(format); ok {
		data, err := exporter.Render(r.dataset(s, coll))
		if err != nil {
			return nil, fmt.Errorf("export %s as %s: %w", coll.Schema.Name, format, err)
		}
		return &Attachment{
			Filename:    fmt.Sprintf("%s.%s", coll.Schema.PluralName(), exporter.Format()),
			ContentType: exporter.ContentType(),
			Data:        data,
		}, nil
	}

	items := make([]interface{}, 0, coll.Len())
	for _, rec := range coll.Records {
		items = append(items, map[string]interface{}{
			"id":      rec.ID,
			"display": r.text(s.Snapshot.Display(coll.Schema, rec), format),
		})
	}
	return items, nil
}

func (r *DefaultRenderer) dataset(s *Session, coll Collection) export.Dataset {
	headers := []string{models.FieldID, "display"}
	var columns []models.FieldSpec
	for _, field := range coll.Schema.Fields {
		if field.Kind == models.FieldKindManyRelation || r.gate.Check(coll.Schema, field.Name) != nil {
			continue
		}
		headers = append(headers, field.Name)
		columns = append(columns, field)
	}
	rows := make([]map[string]string, 0, coll.Len())
	for _, rec := range coll.Records {
		row := map[string]string{
			models.FieldID: strconv.FormatInt(rec.ID, 10),
			"display":      r.clean(s.Snapshot.Display(coll.Schema, rec)),
		}
		for _, field := range columns {
			var v interface{} = rec.Get(field.Name)
			if field.Kind == models.FieldKindForeignKey {
				related, err := s.Snapshot.Related(rec, field)
				if err == nil && len(related) > 0 {
					v = related[0]
				}
			}
			row[field.Name] = r.clean(displayValue(s, field, v))
		}
		rows = append(rows, row)
	}
	return export.Dataset{Title: coll.Schema.PluralName(), Headers: headers, Rows: rows}
}

func (r *DefaultRenderer) renderValue(s *Session, spec models.FieldSpec, v interface{}, format string) interface{} {
	if format == FormatJSON {
		switch typed := v.(type) {
		case *models.Record:
			if typed == nil {
				return nil
			}
			return recordRef(s, typed)
		case []*models.Record:
			out := make([]interface{}, 0, len(typed))
			for _, rec := range typed {
				out = append(out, recordRef(s, rec))
			}
			return out
		case string:
			return r.clean(typed)
		case nil, bool, int, int64, float64, map[string]interface{}, []interface{}:
			return typed
		default:
			return models.FormatValue(typed)
		}
	}

	if list, ok := v.([]*models.Record); ok {
		out := make([]string, 0, len(list))
		for _, rec := range list {
			out = append(out, r.text(displayValue(s, spec, rec), format))
		}
		return out
	}
	return r.text(displayValue(s, spec, v), format)
}

func recordRef(s *Session, rec *models.Record) map[string]interface{} {
	display := models.FormatValue(rec.ID)
	if schema, err := s.Snapshot.Schema(rec.Schema); err == nil {
		display = s.Snapshot.Display(schema, rec)
	}
	return map[string]interface{}{"id": rec.ID, "display": display}
}

func (r *DefaultRenderer) text(value, format string) string {
	value = r.clean(value)
	if format == FormatHTML || format == "" {
		return html.EscapeString(value)
	}
	return value
}

// clean strips newlines and tabs when configured to.
func (r *DefaultRenderer) clean(value string) string {
	if !r.removeNewlines {
		return value
	}
	value = strings.NewReplacer("\n", "", "\r", "", "\t", "").Replace(value)
	for strings.Contains(value, "  ") {
		value = strings.ReplaceAll(value, "  ", " ")
	}
	return value
}
