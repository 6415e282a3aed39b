package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/dispatch-api/internal/models"
)

// ChangeReporter receives ledger entries as fields change.
type ChangeReporter interface {
	ReportChange(change models.Change)
}

// ObjectHandle is the record a request acts on together with its change
// ledger. The ledger is append-only until the request ends.
type ObjectHandle struct {
	Schema    *models.Schema
	Record    *models.Record
	Fields    []string
	Functions []string

	changes []models.Change
}

// NewObjectHandle wraps rec. A nil rec starts a new unsaved record.
func NewObjectHandle(schema *models.Schema, rec *models.Record) *ObjectHandle {
	if rec == nil {
		rec = models.NewRecord(schema.Name)
	}
	return &ObjectHandle{Schema: schema, Record: rec}
}

// ReportChange appends one ledger entry.
func (h *ObjectHandle) ReportChange(change models.Change) {
	h.changes = append(h.changes, change)
}

// Changes returns the ledger in order.
func (h *ObjectHandle) Changes() []models.Change {
	out := make([]models.Change, len(h.changes))
	copy(out, h.changes)
	return out
}

// HasChanges reports whether anything was ledgered.
func (h *ObjectHandle) HasChanges() bool {
	return len(h.changes) > 0
}

// Commit persists the record, creating it when it has no identity yet.
func (h *ObjectHandle) Commit(s *Session) error {
	now := time.Now().UTC().Truncate(time.Second)
	if h.Schema.HasField(models.FieldDateModified) {
		h.Record.Set(models.FieldDateModified, now)
	}
	store := s.Snapshot.Store()
	if h.Record.IsNew() {
		if h.Schema.HasField(models.FieldDateCreated) && h.Record.Get(models.FieldDateCreated) == nil {
			h.Record.Set(models.FieldDateCreated, now)
		}
		if err := store.Create(s.Context(), h.Record); err != nil {
			return fmt.Errorf("create %s: %w", h.Schema.Name, err)
		}
		s.Snapshot.Add(h.Record)
		s.Snapshot.MarkWritten(h.Schema.Name)
		return nil
	}
	if err := store.Update(s.Context(), h.Record); err != nil {
		return fmt.Errorf("update %s %d: %w", h.Schema.Name, h.Record.ID, err)
	}
	s.Snapshot.MarkWritten(h.Schema.Name)
	return nil
}

// Summary returns one human readable line enumerating every change.
func (h *ObjectHandle) Summary(display string) string {
	if len(h.changes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(h.changes))
	for _, change := range h.changes {
		parts = append(parts, change.String())
	}
	return fmt.Sprintf("%s '%s' updated: %s", h.Schema.Name, display, strings.Join(parts, "; "))
}
