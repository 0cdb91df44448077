package audit

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"graph-control-plane/backend/internal/audit/domain"
	"graph-control-plane/backend/internal/db"
)

type memAuditRepo struct {
	entries []*domain.ProvisionAudit
	err     error
}

func (m *memAuditRepo) Create(_ context.Context, _ db.DBTX, a *domain.ProvisionAudit) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, a)
	return nil
}

func (m *memAuditRepo) ListByDomain(_ context.Context, _ db.DBTX, domainID string, _, _ int32) ([]*domain.ProvisionAudit, error) {
	var out []*domain.ProvisionAudit
	for _, e := range m.entries {
		if e.DomainID == domainID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRecordPersistsEntry(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(nil, repo, zap.NewNop())

	l.Record(context.Background(), "d1", EventProvisionSucceeded, "user-1", "ok",
		map[string]string{"database": "db-abc-acme"})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" {
		t.Error("expected generated ID")
	}
	if e.Event != EventProvisionSucceeded || e.DomainID != "d1" || e.Actor != "user-1" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestRecordSwallowsRepoError(t *testing.T) {
	repo := &memAuditRepo{err: errors.New("db down")}
	l := NewLogger(nil, repo, zap.NewNop())

	// Must not panic or propagate.
	l.Record(context.Background(), "d1", EventProvisionFailed, "", "error", nil)
}

func TestRecordNilRepoIsNoop(t *testing.T) {
	l := NewLogger(nil, nil, zap.NewNop())
	l.Record(context.Background(), "d1", EventProvisionRequested, "user-1", "", nil)
}
