package repository

import (
	"context"

	"graph-control-plane/backend/internal/db"
	"graph-control-plane/backend/internal/domains/domain"
)

// ListItem is one row of a tenant-scoped domain listing, joined with the
// graph binding. Status fields default to the pre-binding values when no
// DomainGraph row is visible yet.
type ListItem struct {
	DomainID        string
	Name            string
	Icon            string
	ProvisionStatus domain.ProvisionStatus
	SeedStatus      string
}

// DomainRepository defines persistence for domains. Each call is a single
// statement against the given DBTX except DeleteWithDependents, which the
// caller must run inside a transaction it owns.
type DomainRepository interface {
	ExistsByTenantAndName(ctx context.Context, q db.DBTX, tenantID, name string) (bool, error)
	Create(ctx context.Context, q db.DBTX, d *domain.Domain) error
	GetByID(ctx context.Context, q db.DBTX, id string) (*domain.Domain, error)
	GetByName(ctx context.Context, q db.DBTX, name string) (*domain.Domain, error)
	CountByTenant(ctx context.Context, q db.DBTX, tenantID string) (int, error)
	ListByTenant(ctx context.Context, q db.DBTX, tenantID string, statusFilter domain.ProvisionStatus, page, pageSize int) ([]ListItem, int, error)
	DeleteWithDependents(ctx context.Context, q db.DBTX, id string) error
}

// GraphRepository defines persistence for domain-graph bindings.
type GraphRepository interface {
	CreateInitial(ctx context.Context, q db.DBTX, domainID, idempotencyKey string) error
	MarkProvisioning(ctx context.Context, q db.DBTX, domainID string) error
	MarkOnline(ctx context.Context, q db.DBTX, domainID string) error
	MarkFailed(ctx context.Context, q db.DBTX, domainID, failReason string) error
	SaveCredentials(ctx context.Context, q db.DBTX, domainID, uri, database, username, secretEnc string, credVersion int) error
	GetByDomainID(ctx context.Context, q db.DBTX, domainID string) (*domain.DomainGraph, error)
}
