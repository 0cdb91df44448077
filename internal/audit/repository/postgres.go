package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"graph-control-plane/backend/internal/audit/domain"
	"graph-control-plane/backend/internal/db"
)

// PostgresRepository persists provisioning audit records.
type PostgresRepository struct{}

// NewPostgresRepository returns an audit repository.
func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

// Create appends one audit record. The record must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, q db.DBTX, a *domain.ProvisionAudit) error {
	// An untyped nil reaches the driver as SQL NULL; a nil []byte would not.
	var payload any
	if len(a.Payload) > 0 {
		b, err := json.Marshal(a.Payload)
		if err != nil {
			return err
		}
		payload = b
	}
	actor := sql.NullString{String: a.Actor, Valid: a.Actor != ""}
	result := sql.NullString{String: a.Result, Valid: a.Result != ""}
	_, err := q.ExecContext(ctx, `
		INSERT INTO provision_audits (id, domain_id, event, actor, result, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.DomainID, a.Event, actor, result, payload, a.CreatedAt)
	return err
}

// ListByDomain returns audit records for the domain, newest first,
// paginated by limit and offset.
func (r *PostgresRepository) ListByDomain(ctx context.Context, q db.DBTX, domainID string, limit, offset int32) ([]*domain.ProvisionAudit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, domain_id, event, actor, result, payload, created_at
		FROM provision_audits
		WHERE domain_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, domainID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ProvisionAudit
	for rows.Next() {
		var (
			a       domain.ProvisionAudit
			actor   sql.NullString
			result  sql.NullString
			payload []byte
		)
		if err := rows.Scan(&a.ID, &a.DomainID, &a.Event, &actor, &result, &payload, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Actor = actor.String
		a.Result = result.String
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &a.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
