package models

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// Record is one stored entity. Foreign keys are stored in Values as the
// related record id; many-relations live in Relations as id lists.
type Record struct {
	ID        int64                  `json:"id"`
	Schema    string                 `json:"schema"`
	Values    map[string]interface{} `json:"values"`
	Relations map[string][]int64     `json:"relations,omitempty"`
}

// NewRecord returns an unsaved record of the given schema.
func NewRecord(schema string) *Record {
	return &Record{Schema: schema, Values: map[string]interface{}{}, Relations: map[string][]int64{}}
}

// IsNew reports whether the record has not been stored yet.
func (r *Record) IsNew() bool {
	return r.ID == 0
}

// Get returns the raw value of a field.
func (r *Record) Get(name string) interface{} {
	if name == FieldID {
		if r.ID == 0 {
			return nil
		}
		return r.ID
	}
	if r.Values == nil {
		return nil
	}
	return r.Values[name]
}

// Set stores a raw field value.
func (r *Record) Set(name string, value interface{}) {
	if r.Values == nil {
		r.Values = map[string]interface{}{}
	}
	r.Values[name] = value
}

// String returns the field value formatted with FormatValue.
func (r *Record) String(name string) string {
	return FormatValue(r.Get(name))
}

// Ref returns the related id stored in a foreign key field.
func (r *Record) Ref(name string) (int64, bool) {
	v := r.Get(name)
	if v == nil {
		return 0, false
	}
	id, err := cast.ToInt64E(v)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// RelatedIDs returns the ids linked through a many-relation.
func (r *Record) RelatedIDs(name string) []int64 {
	if r.Relations == nil {
		return nil
	}
	return r.Relations[name]
}

// HasRelated reports whether id is linked through a many-relation.
func (r *Record) HasRelated(name string, id int64) bool {
	for _, existing := range r.RelatedIDs(name) {
		if existing == id {
			return true
		}
	}
	return false
}

// AddRelated links id through a many-relation.
func (r *Record) AddRelated(name string, id int64) {
	if r.HasRelated(name, id) {
		return
	}
	if r.Relations == nil {
		r.Relations = map[string][]int64{}
	}
	ids := append(r.Relations[name], id)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	r.Relations[name] = ids
}

// RemoveRelated unlinks id from a many-relation.
func (r *Record) RemoveRelated(name string, id int64) {
	ids := r.RelatedIDs(name)
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	if r.Relations != nil {
		r.Relations[name] = out
	}
}

// Clone returns a deep copy safe to mutate.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{ID: r.ID, Schema: r.Schema, Values: make(map[string]interface{}, len(r.Values)), Relations: make(map[string][]int64, len(r.Relations))}
	for k, v := range r.Values {
		out.Values[k] = cloneValue(v)
	}
	for k, ids := range r.Relations {
		out.Relations[k] = append([]int64(nil), ids...)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(typed))
		for k, inner := range typed {
			m[k] = cloneValue(inner)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(typed))
		for i, inner := range typed {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// FormatValue renders a raw value the way it is compared and ledgered.
func FormatValue(v interface{}) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format(time.DateOnly)
		}
		return typed.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case fmt.Stringer:
		return typed.String()
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return s
	}
}
