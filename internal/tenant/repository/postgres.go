package repository

import (
	"context"
	"database/sql"
	"errors"

	"graph-control-plane/backend/internal/db"
	"graph-control-plane/backend/internal/tenant/domain"
)

type PostgresRepository struct{}

// NewPostgresRepository returns a tenant repository. The DBTX is supplied
// per call so the orchestration layer can route statements through its own
// transaction.
func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

// FindByOwnerUserID returns the tenant owned by ownerUserID, or nil if not
// found. It returns an error only for database failures, not missing rows.
func (r *PostgresRepository) FindByOwnerUserID(ctx context.Context, q db.DBTX, ownerUserID string) (*domain.Tenant, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, owner_user_id, owner_email, plan, is_active, created_at, updated_at
		FROM tenants
		WHERE owner_user_id = $1`, ownerUserID)

	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.OwnerUserID, &t.OwnerEmail, &t.Plan, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Create persists the tenant. The tenant must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, q db.DBTX, t *domain.Tenant) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tenants (id, name, owner_user_id, owner_email, plan, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.OwnerUserID, t.OwnerEmail, t.Plan, t.IsActive, t.CreatedAt, t.UpdatedAt)
	return err
}
