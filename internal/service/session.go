package service

import (
	"context"
	"net/http"
)

// Session is the per-request state threaded through detection, filtering and
// the actions. It is never shared between requests.
type Session struct {
	Request  *RequestContext
	Snapshot *Snapshot
	Messages *MessageList
	Status   int
}

// NewSession constructs a session reading through store.
func NewSession(ctx context.Context, req *RequestContext, store RecordStore, registry *SchemaRegistry) *Session {
	if req == nil {
		req = &RequestContext{}
	}
	return &Session{
		Request:  req,
		Snapshot: NewSnapshot(ctx, store, registry),
		Messages: NewMessageList(),
		Status:   http.StatusOK,
	}
}

// Context returns the request context.
func (s *Session) Context() context.Context {
	return s.Snapshot.Context()
}

// Fail records a failure status unless a more specific one was set already.
func (s *Session) Fail(status int) {
	if s.Status == http.StatusOK {
		s.Status = status
	}
}
