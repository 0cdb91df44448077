package repository

import (
	"context"

	"graph-control-plane/backend/internal/db"
	"graph-control-plane/backend/internal/tenant/domain"
)

// Repository defines persistence for tenants. Each call is a single
// statement against the given DBTX; callers own transaction boundaries.
type Repository interface {
	FindByOwnerUserID(ctx context.Context, q db.DBTX, ownerUserID string) (*domain.Tenant, error)
	Create(ctx context.Context, q db.DBTX, t *domain.Tenant) error
}
