package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dispatch-api/internal/models"
)

// AuditRepository persists change ledgers written by the dispatcher.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog stores an audit log entry.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.Changes == nil {
		log.Changes = []byte("[]")
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, changes, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :action, :resource, :resource_id, :changes, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByResource returns the audit trail of one record, newest first.
func (r *AuditRepository) ListByResource(ctx context.Context, resource string, resourceID int64) ([]models.AuditLog, error) {
	const query = `SELECT id, user_id, action, resource, resource_id, changes, ip_address, user_agent, created_at
FROM audit_logs WHERE resource = $1 AND resource_id = $2 ORDER BY created_at DESC`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, resource, resourceID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// MemoryAuditRepository keeps audit entries in memory for the memory store driver.
type MemoryAuditRepository struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

// NewMemoryAuditRepository constructs an empty audit trail.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

// CreateAuditLog appends an entry.
func (r *MemoryAuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

// ListByResource returns the entries of one record, newest first.
func (r *MemoryAuditRepository) ListByResource(ctx context.Context, resource string, resourceID int64) ([]models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		entry := r.logs[i]
		if entry.Resource == resource && entry.ResourceID != nil && *entry.ResourceID == resourceID {
			out = append(out, entry)
		}
	}
	return out, nil
}
