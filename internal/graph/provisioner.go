package graph

import (
	"context"
	"time"

	"go.uber.org/zap"

	"graph-control-plane/backend/internal/db"
	"graph-control-plane/backend/internal/domains/domain"
	"graph-control-plane/backend/internal/errs"
	"graph-control-plane/backend/internal/security"
)

// communityDatabase is the fixed default database used when the server has
// no multi-database support.
const communityDatabase = "neo4j"

// failReasonDomainNotVisible is persisted when the domain row never became
// visible to the provisioning session.
const failReasonDomainNotVisible = "DOMAIN_ROW_NOT_VISIBLE"

// DomainStore is the slice of the domain repository the provisioner needs.
type DomainStore interface {
	GetByID(ctx context.Context, q db.DBTX, id string) (*domain.Domain, error)
}

// GraphStore is the slice of the graph repository the provisioner needs.
type GraphStore interface {
	GetByDomainID(ctx context.Context, q db.DBTX, domainID string) (*domain.DomainGraph, error)
	SaveCredentials(ctx context.Context, q db.DBTX, domainID, uri, database, username, secretEnc string, credVersion int) error
	MarkOnline(ctx context.Context, q db.DBTX, domainID string) error
}

// ProvisionerConfig carries the connection descriptor template and the
// wait-until-online budget.
type ProvisionerConfig struct {
	// PublicURI is recorded on every provisioned binding.
	PublicURI string
	// AdminUser and AdminPass are the shared credential handed to every
	// domain. The password is encrypted by the vault before persistence.
	AdminUser string
	AdminPass string
	// OnlineTimeout bounds the wait for a created database to come online.
	OnlineTimeout time.Duration
}

// Provisioner creates, verifies, and drops per-domain databases and records
// the resulting connection descriptors. All registry writes go through the
// caller-supplied DBTX; the caller owns the transaction boundary.
type Provisioner struct {
	admin   Admin
	vault   *security.Vault
	domains DomainStore
	graphs  GraphStore
	cfg     ProvisionerConfig
	logger  *zap.Logger

	visibilityRetries int
	visibilityDelay   time.Duration
	pollInterval      time.Duration
}

// NewProvisioner wires a Provisioner.
func NewProvisioner(admin Admin, vault *security.Vault, domains DomainStore, graphs GraphStore, cfg ProvisionerConfig, logger *zap.Logger) *Provisioner {
	if cfg.OnlineTimeout <= 0 {
		cfg.OnlineTimeout = 120 * time.Second
	}
	return &Provisioner{
		admin:   admin,
		vault:   vault,
		domains: domains,
		graphs:  graphs,
		cfg:     cfg,
		logger:  logger,

		visibilityRetries: 5,
		visibilityDelay:   300 * time.Millisecond,
		pollInterval:      time.Second,
	}
}

// Provision brings the domain's database online and records the encrypted
// connection descriptor. Idempotent: an already-online binding is left
// untouched. On error the binding is not partially updated; the caller is
// responsible for marking the failure.
func (p *Provisioner) Provision(ctx context.Context, q db.DBTX, domainID string) error {
	log := p.logger.With(zap.String("domain_id", domainID))
	log.Info("provision start")

	g, err := p.graphs.GetByDomainID(ctx, q, domainID)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "load domain graph", err)
	}
	if g != nil && g.ProvisionStatus == domain.StatusOnline {
		log.Info("provision skipped, already online")
		return nil
	}

	d, err := p.awaitDomainVisible(ctx, q, domainID)
	if err != nil {
		return err
	}

	multiDB, err := p.admin.SupportsMultiDatabase(ctx)
	if err != nil {
		return err
	}
	log.Info("capability probe", zap.Bool("multi_database", multiDB))

	database := communityDatabase
	if multiDB {
		database = deriveDatabaseName(d.ID, d.Name)
		if err := p.admin.CreateDatabaseIfNotExists(ctx, database); err != nil {
			return err
		}
		if err := p.waitUntilOnline(ctx, database); err != nil {
			return err
		}
	}
	log.Info("target database ready", zap.String("database", database))

	secretEnc, err := p.vault.Encrypt(p.cfg.AdminPass)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "encrypt graph secret", err)
	}
	if err := p.graphs.SaveCredentials(ctx, q, domainID, p.cfg.PublicURI, database, p.cfg.AdminUser, secretEnc, 1); err != nil {
		return errs.Wrap(errs.KindInternal, "save graph credentials", err)
	}
	if err := p.graphs.MarkOnline(ctx, q, domainID); err != nil {
		return errs.Wrap(errs.KindInternal, "mark graph online", err)
	}

	log.Info("provision success", zap.String("database", database))
	return nil
}

// Drop removes the domain's database. Idempotent: a domain with no recorded
// database is a no-op. A failed drop propagates so the caller can abort
// row deletion.
func (p *Provisioner) Drop(ctx context.Context, q db.DBTX, domainID string) error {
	log := p.logger.With(zap.String("domain_id", domainID))

	g, err := p.graphs.GetByDomainID(ctx, q, domainID)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "load domain graph", err)
	}
	if g == nil || g.Neo4jDatabase == "" {
		log.Info("drop skipped, nothing recorded")
		return nil
	}

	if err := p.admin.DropDatabaseIfExists(ctx, g.Neo4jDatabase); err != nil {
		return err
	}
	log.Info("dropped database", zap.String("database", g.Neo4jDatabase))
	return nil
}

// awaitDomainVisible re-reads the domain row a few times to close the gap
// between the creating transaction's commit and job start.
func (p *Provisioner) awaitDomainVisible(ctx context.Context, q db.DBTX, domainID string) (*domain.Domain, error) {
	d, err := p.domains.GetByID(ctx, q, domainID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain", err)
	}
	for i := 0; d == nil && i < p.visibilityRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.KindInternal, failReasonDomainNotVisible, ctx.Err())
		case <-time.After(p.visibilityDelay):
		}
		if d, err = p.domains.GetByID(ctx, q, domainID); err != nil {
			return nil, errs.Wrap(errs.KindInternal, "load domain", err)
		}
	}
	if d == nil {
		p.logger.Warn("domain row not visible after retries", zap.String("domain_id", domainID))
		return nil, errs.Internal(failReasonDomainNotVisible)
	}
	return d, nil
}

// waitUntilOnline polls the database status until it reports online or the
// budget is exhausted.
func (p *Provisioner) waitUntilOnline(ctx context.Context, database string) error {
	deadline := time.Now().Add(p.cfg.OnlineTimeout)
	for time.Now().Before(deadline) {
		status, exists, err := p.admin.DatabaseStatus(ctx, database)
		if err != nil {
			return err
		}
		if exists && status == "online" {
			return nil
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.KindGraphTimeout, "wait for database online", ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}
	return errs.GraphTimeout("database " + database + " did not become online within " + p.cfg.OnlineTimeout.String())
}
