// Package audit records provisioning lifecycle events. Recording is
// best-effort: a failed audit write never fails the operation it describes.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graph-control-plane/backend/internal/audit/domain"
	auditrepo "graph-control-plane/backend/internal/audit/repository"
	"graph-control-plane/backend/internal/db"
)

// Lifecycle event names written to the audit trail.
const (
	EventProvisionRequested = "provision_requested"
	EventProvisionStarted   = "provision_started"
	EventProvisionSucceeded = "provision_succeeded"
	EventProvisionFailed    = "provision_failed"
	EventRetryRequested     = "retry_requested"
	EventDropRequested      = "drop_requested"
	EventDomainDeleted      = "domain_deleted"
	EventEnqueueFailed      = "enqueue_failed"
)

// Recorder writes a single provisioning audit event.
// Record is best-effort: failures are logged and do not affect the caller.
type Recorder interface {
	Record(ctx context.Context, domainID, event, actor, result string, payload map[string]string)
}

// Logger implements Recorder. It holds its own database handle so audit
// writes never join (and never roll back with) a caller's transaction.
type Logger struct {
	pool   db.DBTX
	repo   auditrepo.Repository
	logger *zap.Logger
}

// NewLogger returns a Recorder that persists to repo over pool.
func NewLogger(pool db.DBTX, repo auditrepo.Repository, logger *zap.Logger) *Logger {
	return &Logger{pool: pool, repo: repo, logger: logger}
}

// Record writes one audit entry. Best-effort: errors are logged and not
// returned. Payload values must never contain secrets.
func (l *Logger) Record(ctx context.Context, domainID, event, actor, result string, payload map[string]string) {
	if l.repo == nil {
		return
	}
	entry := &domain.ProvisionAudit{
		ID:        uuid.New().String(),
		DomainID:  domainID,
		Event:     event,
		Actor:     actor,
		Result:    result,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, l.pool, entry); err != nil {
		l.logger.Warn("audit: failed to record event",
			zap.String("event", event),
			zap.String("domain_id", domainID),
			zap.Error(err))
	}
}
