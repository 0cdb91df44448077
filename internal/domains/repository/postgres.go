package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"graph-control-plane/backend/internal/db"
	"graph-control-plane/backend/internal/domains/domain"
	"graph-control-plane/backend/internal/errs"
)

// PostgresDomainRepository persists domains. The DBTX is supplied per call
// so the orchestration layer controls transaction boundaries.
type PostgresDomainRepository struct{}

// NewPostgresDomainRepository returns a domain repository.
func NewPostgresDomainRepository() *PostgresDomainRepository {
	return &PostgresDomainRepository{}
}

// ExistsByTenantAndName reports whether the tenant already has a domain of
// the given name.
func (r *PostgresDomainRepository) ExistsByTenantAndName(ctx context.Context, q db.DBTX, tenantID, name string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM domains WHERE tenant_id = $1 AND name = $2`, tenantID, name).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create persists the domain. The domain must have ID set.
func (r *PostgresDomainRepository) Create(ctx context.Context, q db.DBTX, d *domain.Domain) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO domains (id, tenant_id, name, icon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.TenantID, d.Name, d.Icon, d.CreatedAt, d.UpdatedAt)
	return err
}

// GetByID returns the domain for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresDomainRepository) GetByID(ctx context.Context, q db.DBTX, id string) (*domain.Domain, error) {
	return scanDomain(q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, icon, created_at, updated_at
		FROM domains WHERE id = $1`, id))
}

// GetByName returns the domain for name, or nil if not found.
func (r *PostgresDomainRepository) GetByName(ctx context.Context, q db.DBTX, name string) (*domain.Domain, error) {
	return scanDomain(q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, icon, created_at, updated_at
		FROM domains WHERE name = $1`, name))
}

func scanDomain(row *sql.Row) (*domain.Domain, error) {
	var d domain.Domain
	err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.Icon, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// CountByTenant returns the number of domains owned by the tenant. Used for
// quota enforcement.
func (r *PostgresDomainRepository) CountByTenant(ctx context.Context, q db.DBTX, tenantID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM domains WHERE tenant_id = $1`, tenantID).Scan(&n)
	return n, err
}

// ListByTenant returns one page of the tenant's domains joined with their
// graph bindings, plus the total row count for the filter.
func (r *PostgresDomainRepository) ListByTenant(ctx context.Context, q db.DBTX, tenantID string, statusFilter domain.ProvisionStatus, page, pageSize int) ([]ListItem, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := `
		SELECT d.id, d.name, d.icon,
		       COALESCE(g.provision_status, 'provisioning'),
		       COALESCE(g.seed_status, 'not_started')
		FROM domains d
		LEFT JOIN domain_graphs g ON g.domain_id = d.id
		WHERE d.tenant_id = $1`
	countQuery := `
		SELECT COUNT(*)
		FROM domains d
		LEFT JOIN domain_graphs g ON g.domain_id = d.id
		WHERE d.tenant_id = $1`

	args := []any{tenantID}
	if statusFilter != "" {
		query += ` AND g.provision_status = $2`
		countQuery += ` AND g.provision_status = $2`
		args = append(args, statusFilter)
	}
	query += fmt.Sprintf(` ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := q.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.DomainID, &it.Name, &it.Icon, &it.ProvisionStatus, &it.SeedStatus); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DeleteWithDependents removes the DomainGraph row (if any) and then the
// Domain row, in that order. Must run inside a caller-owned transaction.
func (r *PostgresDomainRepository) DeleteWithDependents(ctx context.Context, q db.DBTX, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM domain_graphs WHERE domain_id = $1`, id); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `DELETE FROM domains WHERE id = $1`, id)
	return err
}

// PostgresGraphRepository persists domain-graph bindings.
type PostgresGraphRepository struct{}

// NewPostgresGraphRepository returns a domain-graph repository.
func NewPostgresGraphRepository() *PostgresGraphRepository {
	return &PostgresGraphRepository{}
}

// CreateInitial inserts the binding in the provisioning state with a fresh
// idempotency key and seed status not_started.
func (r *PostgresGraphRepository) CreateInitial(ctx context.Context, q db.DBTX, domainID, idempotencyKey string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO domain_graphs (domain_id, provision_status, seed_status, idempotency_key, cred_version, created_at, updated_at)
		VALUES ($1, 'provisioning', 'not_started', $2, 1, now(), now())`,
		domainID, idempotencyKey)
	return err
}

// MarkProvisioning resets the binding to the provisioning state.
func (r *PostgresGraphRepository) MarkProvisioning(ctx context.Context, q db.DBTX, domainID string) error {
	return r.exec(ctx, q, `
		UPDATE domain_graphs
		SET provision_status = 'provisioning', updated_at = now()
		WHERE domain_id = $1`, domainID)
}

// MarkOnline transitions the binding to online. provisioned_at is set only
// on the first success; a later success clears the fail reason.
func (r *PostgresGraphRepository) MarkOnline(ctx context.Context, q db.DBTX, domainID string) error {
	return r.exec(ctx, q, `
		UPDATE domain_graphs
		SET provision_status = 'online',
		    fail_reason = NULL,
		    provisioned_at = COALESCE(provisioned_at, now()),
		    updated_at = now()
		WHERE domain_id = $1`, domainID)
}

// MarkFailed records the failure with a truncated diagnostic reason.
func (r *PostgresGraphRepository) MarkFailed(ctx context.Context, q db.DBTX, domainID, failReason string) error {
	return r.exec(ctx, q, `
		UPDATE domain_graphs
		SET provision_status = 'failed', fail_reason = $2, updated_at = now()
		WHERE domain_id = $1`, domainID, errs.Truncate(failReason))
}

// SaveCredentials persists the connection descriptor. The secret must
// already be encrypted by the vault.
func (r *PostgresGraphRepository) SaveCredentials(ctx context.Context, q db.DBTX, domainID, uri, database, username, secretEnc string, credVersion int) error {
	return r.exec(ctx, q, `
		UPDATE domain_graphs
		SET neo4j_uri = $2, neo4j_database = $3, neo4j_username = $4,
		    neo4j_secret_enc = $5, cred_version = $6, updated_at = now()
		WHERE domain_id = $1`, domainID, uri, database, username, secretEnc, credVersion)
}

// GetByDomainID returns the binding for domainID, or nil if not found.
func (r *PostgresGraphRepository) GetByDomainID(ctx context.Context, q db.DBTX, domainID string) (*domain.DomainGraph, error) {
	row := q.QueryRowContext(ctx, `
		SELECT domain_id, provision_status, seed_status, idempotency_key,
		       neo4j_uri, neo4j_database, neo4j_username, neo4j_secret_enc,
		       cred_version, fail_reason, provisioned_at, created_at, updated_at
		FROM domain_graphs WHERE domain_id = $1`, domainID)

	var g domain.DomainGraph
	err := row.Scan(&g.DomainID, &g.ProvisionStatus, &g.SeedStatus, &g.IdempotencyKey,
		&g.Neo4jURI, &g.Neo4jDatabase, &g.Neo4jUsername, &g.Neo4jSecretEnc,
		&g.CredVersion, &g.FailReason, &g.ProvisionedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *PostgresGraphRepository) exec(ctx context.Context, q db.DBTX, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("domain graph not found").
			WithDetails(map[string]string{"domainId": args[0].(string)})
	}
	return nil
}
