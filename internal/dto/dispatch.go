package dto

import (
	"github.com/noah-isme/dispatch-api/internal/models"
)

// DispatchResponse is the reply of every dispatch request.
type DispatchResponse struct {
	Status   int              `json:"status"`
	Messages []models.Message `json:"messages"`
	Payload  interface{}      `json:"payload"`
	Meta     *DispatchMeta    `json:"__meta,omitempty"`
}

// DispatchMeta is the diagnostic block shown to privileged actors only.
type DispatchMeta struct {
	Model       string       `json:"model"`
	Object      *ObjectMeta  `json:"object"`
	Fields      []string     `json:"fields"`
	Functions   []string     `json:"functions"`
	Mode        ModeMeta     `json:"mode"`
	Debug       bool         `json:"debug"`
	RequestUser models.Actor `json:"request_user"`
	Request     RequestMeta  `json:"request"`
}

// ObjectMeta identifies the resolved record.
type ObjectMeta struct {
	ID      int64  `json:"id"`
	Display string `json:"display"`
}

// ModeMeta lists the detected mode flags.
type ModeMeta struct {
	Editable bool `json:"editable"`
	Add      bool `json:"add"`
}

// RequestMeta echoes the raw request.
type RequestMeta struct {
	Path    string                         `json:"path"`
	Method  string                         `json:"method"`
	Handler string                         `json:"handler"`
	Params  map[string]map[string][]string `json:"params"`
}

// DispatchQuery documents the reserved query parameters of the dispatch
// endpoints.
type DispatchQuery struct {
	Field    string `form:"field"`
	Format   string `form:"format" binding:"omitempty,oneof=html text json csv pdf"`
	Mode     string `form:"mode"`
	Editable string `form:"editable"`
	Add      string `form:"add"`
}

// SchemaListResponse lists the dispatchable schema names.
type SchemaListResponse struct {
	Schemas []string `json:"schemas"`
}
