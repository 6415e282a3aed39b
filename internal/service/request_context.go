package service

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/config"
)

// Mode flags a request may carry.
const (
	ModeEditable = "editable"
	ModeAdd      = "add"
)

// Request parameter names the dispatcher reserves for itself.
const (
	ParamModel  = "model"
	ParamField  = "field"
	ParamFormat = "format"
	ParamMode   = "mode"
	ParamValue  = "value"
)

// AllFieldsSentinel requests every field; honoured for privileged actors only.
const AllFieldsSentinel = "__all__"

// RequestContext carries everything the dispatcher reads from one request.
// Lookups walk the sources in the configured priority order.
type RequestContext struct {
	Actor     models.Actor
	Method    string
	Path      string
	Handler   string
	RemoteIP  string
	UserAgent string

	Kwargs  map[string]string
	Query   url.Values
	Form    url.Values
	JSON    map[string]interface{}
	Headers http.Header

	Sources []string
}

func (r *RequestContext) sources() []string {
	if len(r.Sources) == 0 {
		return []string{config.SourceKwargs, config.SourceGET, config.SourcePOST, config.SourceJSON, config.SourceHeaders}
	}
	return r.Sources
}

// Get returns the first value found for key.
func (r *RequestContext) Get(key string) (string, bool) {
	values := r.GetAll(key)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Value returns the first value found for key or an empty string.
func (r *RequestContext) Value(key string) string {
	v, _ := r.Get(key)
	return v
}

// GetAll returns every value of key from the first source that has it.
func (r *RequestContext) GetAll(key string) []string {
	for _, source := range r.sources() {
		switch source {
		case config.SourceKwargs:
			if v, ok := r.Kwargs[key]; ok {
				return []string{v}
			}
		case config.SourceGET:
			if v, ok := r.Query[key]; ok && len(v) > 0 {
				return v
			}
		case config.SourcePOST:
			if v, ok := r.Form[key]; ok && len(v) > 0 {
				return v
			}
		case config.SourceJSON:
			if v, ok := r.JSON[key]; ok {
				return jsonStrings(v)
			}
		case config.SourceHeaders:
			if r.Headers == nil {
				continue
			}
			if v := r.Headers.Values(key); len(v) > 0 {
				return v
			}
		}
	}
	return nil
}

// Has reports whether any source carries key.
func (r *RequestContext) Has(key string) bool {
	return len(r.GetAll(key)) > 0
}

// Keys returns the union of parameter names from every non-header source,
// sorted for deterministic processing.
func (r *RequestContext) Keys() []string {
	seen := make(map[string]struct{})
	for _, source := range r.sources() {
		switch source {
		case config.SourceKwargs:
			for k := range r.Kwargs {
				seen[k] = struct{}{}
			}
		case config.SourceGET:
			for k := range r.Query {
				seen[k] = struct{}{}
			}
		case config.SourcePOST:
			for k := range r.Form {
				seen[k] = struct{}{}
			}
		case config.SourceJSON:
			for k := range r.JSON {
				seen[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Mode reports whether a mode flag is set, either as its own key or listed
// in the mode parameter.
func (r *RequestContext) Mode(flag string) bool {
	if v, ok := r.Get(flag); ok {
		if !isFalsy(v) {
			return true
		}
	}
	for _, raw := range r.GetAll(ParamMode) {
		for _, part := range strings.Split(raw, ",") {
			if strings.EqualFold(strings.TrimSpace(part), flag) {
				return true
			}
		}
	}
	return false
}

func isFalsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return true
	}
	return false
}

func jsonStrings(v interface{}) []string {
	switch typed := v.(type) {
	case nil:
		return []string{""}
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, jsonScalar(item))
		}
		return out
	default:
		return []string{jsonScalar(typed)}
	}
}

func jsonScalar(v interface{}) string {
	switch typed := v.(type) {
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return models.FormatValue(typed)
	}
}

// ParamsBySource returns the raw parameters grouped by source. Headers are
// left out.
func (r *RequestContext) ParamsBySource() map[string]map[string][]string {
	out := make(map[string]map[string][]string, 4)
	if len(r.Kwargs) > 0 {
		kwargs := make(map[string][]string, len(r.Kwargs))
		for k, v := range r.Kwargs {
			kwargs[k] = []string{v}
		}
		out[config.SourceKwargs] = kwargs
	}
	if len(r.Query) > 0 {
		out[config.SourceGET] = map[string][]string(r.Query)
	}
	if len(r.Form) > 0 {
		out[config.SourcePOST] = map[string][]string(r.Form)
	}
	if len(r.JSON) > 0 {
		body := make(map[string][]string, len(r.JSON))
		for k, v := range r.JSON {
			body[k] = jsonStrings(v)
		}
		out[config.SourceJSON] = body
	}
	return out
}

// HasBody reports whether the request carries form or json parameters.
func (r *RequestContext) HasBody() bool {
	return len(r.Form) > 0 || len(r.JSON) > 0
}
