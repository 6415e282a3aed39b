package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/jobs"
)

const auditJobKind = "audit_log"

// AuditQueue writes audit entries off the request path.
type AuditQueue struct {
	queue *jobs.Queue
}

// NewAuditQueue starts a queue that forwards entries to next.
func NewAuditQueue(next AuditWriter, cfg jobs.Config) *AuditQueue {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.AuditLog)
		if !ok {
			cfg.Logger.Warn("unexpected audit payload", zap.String("job_id", job.ID))
			return nil
		}
		return next.CreateAuditLog(ctx, entry)
	}
	q := &AuditQueue{queue: jobs.New(auditJobKind, handler, cfg)}
	q.queue.Start()
	return q
}

// CreateAuditLog enqueues entry. The request context is not carried over
// since the write outlives the request.
func (q *AuditQueue) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	if _, err := q.queue.Enqueue(auditJobKind, entry); err != nil {
		return fmt.Errorf("enqueue audit log: %w", err)
	}
	return nil
}

// Close flushes pending entries.
func (q *AuditQueue) Close() {
	q.queue.Stop()
}
