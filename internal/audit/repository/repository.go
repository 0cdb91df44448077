package repository

import (
	"context"

	"graph-control-plane/backend/internal/audit/domain"
	"graph-control-plane/backend/internal/db"
)

// Repository defines persistence for provisioning audit records.
type Repository interface {
	Create(ctx context.Context, q db.DBTX, a *domain.ProvisionAudit) error
	ListByDomain(ctx context.Context, q db.DBTX, domainID string, limit, offset int32) ([]*domain.ProvisionAudit, error)
}
