// Package service orchestrates the domain lifecycle: registry writes in
// explicit transactions, committed before any provisioning job is
// dispatched, and job wrappers that never let a failure escape the worker.
package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"graph-control-plane/backend/internal/audit"
	"graph-control-plane/backend/internal/db"
	"graph-control-plane/backend/internal/domains/domain"
	"graph-control-plane/backend/internal/domains/repository"
	"graph-control-plane/backend/internal/errs"
	"graph-control-plane/backend/internal/jobs"
	tenantdomain "graph-control-plane/backend/internal/tenant/domain"
)

// actorServiceToken is recorded as the audit actor for internal triggers.
const actorServiceToken = "service_token"

// DomainRepo is the slice of the domain repository the service needs.
type DomainRepo interface {
	ExistsByTenantAndName(ctx context.Context, q db.DBTX, tenantID, name string) (bool, error)
	Create(ctx context.Context, q db.DBTX, d *domain.Domain) error
	GetByID(ctx context.Context, q db.DBTX, id string) (*domain.Domain, error)
	GetByName(ctx context.Context, q db.DBTX, name string) (*domain.Domain, error)
	CountByTenant(ctx context.Context, q db.DBTX, tenantID string) (int, error)
	ListByTenant(ctx context.Context, q db.DBTX, tenantID string, statusFilter domain.ProvisionStatus, page, pageSize int) ([]repository.ListItem, int, error)
	DeleteWithDependents(ctx context.Context, q db.DBTX, id string) error
}

// GraphRepo is the slice of the graph repository the service needs.
type GraphRepo interface {
	CreateInitial(ctx context.Context, q db.DBTX, domainID, idempotencyKey string) error
	MarkProvisioning(ctx context.Context, q db.DBTX, domainID string) error
	MarkFailed(ctx context.Context, q db.DBTX, domainID, failReason string) error
	GetByDomainID(ctx context.Context, q db.DBTX, domainID string) (*domain.DomainGraph, error)
}

// TenantProvider resolves the tenant backing a principal.
type TenantProvider interface {
	FindOrCreateFor(ctx context.Context, q db.DBTX, p tenantdomain.Principal) (*tenantdomain.Tenant, error)
}

// GraphProvisioner performs the graph-side work of provisioning and drops.
type GraphProvisioner interface {
	Provision(ctx context.Context, q db.DBTX, domainID string) error
	Drop(ctx context.Context, q db.DBTX, domainID string) error
}

// Dispatcher accepts background jobs.
type Dispatcher interface {
	Submit(name string, job jobs.Job) error
}

// CreateDomainResult is the DTO returned from a create request.
type CreateDomainResult struct {
	DomainID        string
	TenantID        string
	Name            string
	Icon            string
	ProvisionStatus domain.ProvisionStatus
	SeedStatus      string
	IdempotencyKey  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DomainDetail is the DTO for the settings page.
type DomainDetail struct {
	DomainID        string
	TenantID        string
	Name            string
	Icon            string
	ProvisionStatus domain.ProvisionStatus
	SeedStatus      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusResult is the DTO for status polling.
type StatusResult struct {
	DomainID        string
	ProvisionStatus domain.ProvisionStatus
	FailReason      *string
	UpdatedAt       time.Time
}

// ListResult is one page of a tenant's domains.
type ListResult struct {
	Items    []repository.ListItem
	Total    int
	Page     int
	PageSize int
}

// EnsureResult is the DTO returned from the internal provision trigger.
type EnsureResult struct {
	DomainID        string
	ProvisionStatus domain.ProvisionStatus
	IdempotencyKey  string
}

// DomainService owns the registry transaction boundaries. Rows are always
// committed before a provisioning job is dispatched so worker sessions can
// see them.
type DomainService struct {
	pool        *sql.DB
	domains     DomainRepo
	graphs      GraphRepo
	tenants     TenantProvider
	provisioner GraphProvisioner
	dispatcher  Dispatcher
	recorder    audit.Recorder
	logger      *zap.Logger
	tracer      trace.Tracer
	async       bool
}

// NewDomainService wires a DomainService. async selects background dispatch
// over inline execution.
func NewDomainService(
	pool *sql.DB,
	domains DomainRepo,
	graphs GraphRepo,
	tenants TenantProvider,
	provisioner GraphProvisioner,
	dispatcher Dispatcher,
	recorder audit.Recorder,
	logger *zap.Logger,
	async bool,
) *DomainService {
	return &DomainService{
		pool:        pool,
		domains:     domains,
		graphs:      graphs,
		tenants:     tenants,
		provisioner: provisioner,
		dispatcher:  dispatcher,
		recorder:    recorder,
		logger:      logger,
		tracer:      otel.Tracer("domains"),
		async:       async,
	}
}

func newIdempotencyKey() string {
	return "idem_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// inTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (s *DomainService) inTx(ctx context.Context, fn func(tx db.DBTX) error) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindInternal, "commit transaction", err)
	}
	return nil
}

// CreateDomain validates the request, enforces the plan quota and
// per-tenant name uniqueness, commits the Domain and its provisioning
// binding, then dispatches the provisioning job.
func (s *DomainService) CreateDomain(ctx context.Context, p tenantdomain.Principal, name, icon string) (*CreateDomainResult, error) {
	ctx, span := s.tracer.Start(ctx, "domains.Create", trace.WithAttributes(attribute.String("domain.name", name)))
	defer span.End()

	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}

	var (
		d    *domain.Domain
		ten  *tenantdomain.Tenant
		idem = newIdempotencyKey()
	)
	err := s.inTx(ctx, func(tx db.DBTX) error {
		var err error
		ten, err = s.tenants.FindOrCreateFor(ctx, tx, p)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "resolve tenant", err)
		}

		count, err := s.domains.CountByTenant(ctx, tx, ten.ID)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "count domains", err)
		}
		if count >= ten.Plan.DomainQuota() {
			return errs.QuotaExceeded("domain quota reached for your plan").
				WithDetails(map[string]string{"plan": string(ten.Plan)})
		}

		exists, err := s.domains.ExistsByTenantAndName(ctx, tx, ten.ID, name)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "check domain name", err)
		}
		if exists {
			return errs.Conflict("domain name is already used within this tenant").
				WithDetails(map[string]string{"name": name, "constraint": "tenantId_name_unique"})
		}

		now := time.Now().UTC()
		d = &domain.Domain{
			ID:        uuid.New().String(),
			TenantID:  ten.ID,
			Name:      name,
			Icon:      icon,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.domains.Create(ctx, tx, d); err != nil {
			return errs.Wrap(errs.KindInternal, "create domain", err)
		}
		if err := s.graphs.CreateInitial(ctx, tx, d.ID, idem); err != nil {
			return errs.Wrap(errs.KindInternal, "create domain graph", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, d.ID, audit.EventProvisionRequested, p.UserID, "accepted",
		map[string]string{"idempotencyKey": idem})
	s.logger.Info("enqueue provision job", zap.String("domain_id", d.ID))
	s.dispatch(d.ID, p.UserID)

	return &CreateDomainResult{
		DomainID:        d.ID,
		TenantID:        ten.ID,
		Name:            d.Name,
		Icon:            d.Icon,
		ProvisionStatus: domain.StatusProvisioning,
		SeedStatus:      domain.SeedStatusNotStarted,
		IdempotencyKey:  idem,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

// dispatch hands the provisioning job to the executor, or runs it inline
// when async mode is off. A full queue marks the binding failed so the
// client can retry explicitly.
func (s *DomainService) dispatch(domainID, actor string) {
	if !s.async {
		s.runProvisionJob(context.Background(), domainID, actor)
		return
	}
	err := s.dispatcher.Submit("provision:"+domainID, func(ctx context.Context) {
		s.runProvisionJob(ctx, domainID, actor)
	})
	if err != nil {
		s.logger.Error("failed to enqueue provision job",
			zap.String("domain_id", domainID), zap.Error(err))
		s.recorder.Record(context.Background(), domainID, audit.EventEnqueueFailed, actor, "failed", nil)
		s.markFailedBestEffort(context.Background(), domainID, "ENQUEUE_FAILED: "+err.Error())
	}
}

// runProvisionJob is the job boundary: it marks the binding provisioning,
// runs the provisioner in its own transaction, and converts any failure
// into a mark-failed write. Errors never escape.
func (s *DomainService) runProvisionJob(ctx context.Context, domainID, actor string) {
	ctx, span := s.tracer.Start(ctx, "domains.ProvisionJob",
		trace.WithAttributes(attribute.String("domain.id", domainID)))
	defer span.End()

	s.recorder.Record(ctx, domainID, audit.EventProvisionStarted, actor, "", nil)

	if err := s.inTx(ctx, func(tx db.DBTX) error {
		return s.graphs.MarkProvisioning(ctx, tx, domainID)
	}); err != nil {
		s.logger.Error("failed to mark provisioning",
			zap.String("domain_id", domainID), zap.Error(err))
		s.markFailedBestEffort(ctx, domainID, errs.Reason(err))
		s.recorder.Record(ctx, domainID, audit.EventProvisionFailed, actor, "error",
			map[string]string{"reason": errs.Reason(err)})
		return
	}

	err := s.inTx(ctx, func(tx db.DBTX) error {
		return s.provisioner.Provision(ctx, tx, domainID)
	})
	if err != nil {
		reason := errs.Reason(err)
		s.logger.Error("provision job failed",
			zap.String("domain_id", domainID), zap.String("reason", reason), zap.Error(err))
		s.markFailedBestEffort(ctx, domainID, reason)
		s.recorder.Record(ctx, domainID, audit.EventProvisionFailed, actor, "error",
			map[string]string{"reason": reason})
		return
	}

	s.recorder.Record(ctx, domainID, audit.EventProvisionSucceeded, actor, "ok", nil)
}

// markFailedBestEffort records the failure in its own transaction so it
// survives the rollback of the provisioning transaction.
func (s *DomainService) markFailedBestEffort(ctx context.Context, domainID, reason string) {
	if err := s.inTx(ctx, func(tx db.DBTX) error {
		return s.graphs.MarkFailed(ctx, tx, domainID, reason)
	}); err != nil {
		s.logger.Error("failed to mark domain graph failed",
			zap.String("domain_id", domainID), zap.Error(err))
	}
}

// ListDomains returns one page of the principal's domains, optionally
// filtered by provision status.
func (s *DomainService) ListDomains(ctx context.Context, p tenantdomain.Principal, statusFilter domain.ProvisionStatus, page, pageSize int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	ten, err := s.tenants.FindOrCreateFor(ctx, s.pool, p)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "resolve tenant", err)
	}
	items, total, err := s.domains.ListByTenant(ctx, s.pool, ten.ID, statusFilter, page, pageSize)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "list domains", err)
	}
	return &ListResult{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetDomainByName returns the detail DTO for the settings page.
func (s *DomainService) GetDomainByName(ctx context.Context, p tenantdomain.Principal, name string) (*DomainDetail, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}
	d, err := s.domains.GetByName(ctx, s.pool, name)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain", err)
	}
	if d == nil {
		return nil, errs.NotFound("domain not found").
			WithDetails(map[string]string{"name": name})
	}

	detail := &DomainDetail{
		DomainID:        d.ID,
		TenantID:        d.TenantID,
		Name:            d.Name,
		Icon:            d.Icon,
		ProvisionStatus: domain.StatusProvisioning,
		SeedStatus:      domain.SeedStatusNotStarted,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	g, err := s.graphs.GetByDomainID(ctx, s.pool, d.ID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain graph", err)
	}
	if g != nil {
		detail.ProvisionStatus = g.ProvisionStatus
		detail.SeedStatus = g.SeedStatus
	}
	return detail, nil
}

// GetStatus returns the polling DTO. A domain whose binding is missing is
// reported as provisioning.
func (s *DomainService) GetStatus(ctx context.Context, domainID string) (*StatusResult, error) {
	d, err := s.domains.GetByID(ctx, s.pool, domainID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain", err)
	}
	if d == nil {
		return nil, errs.NotFound("domain not found").
			WithDetails(map[string]string{"domainId": domainID})
	}

	g, err := s.graphs.GetByDomainID(ctx, s.pool, domainID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain graph", err)
	}
	if g == nil {
		return &StatusResult{
			DomainID:        domainID,
			ProvisionStatus: domain.StatusProvisioning,
			UpdatedAt:       d.UpdatedAt,
		}, nil
	}
	return &StatusResult{
		DomainID:        domainID,
		ProvisionStatus: g.ProvisionStatus,
		FailReason:      g.FailReason,
		UpdatedAt:       g.UpdatedAt,
	}, nil
}

// GetBindingStatus is the internal variant of GetStatus: a missing binding
// is a not-found error rather than a provisioning default.
func (s *DomainService) GetBindingStatus(ctx context.Context, domainID string) (*StatusResult, error) {
	g, err := s.graphs.GetByDomainID(ctx, s.pool, domainID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain graph", err)
	}
	if g == nil {
		return nil, errs.NotFound("domain graph not found").
			WithDetails(map[string]string{"domainId": domainID})
	}
	return &StatusResult{
		DomainID:        domainID,
		ProvisionStatus: g.ProvisionStatus,
		FailReason:      g.FailReason,
		UpdatedAt:       g.UpdatedAt,
	}, nil
}

// RetryProvision re-enqueues provisioning for a domain that is not online.
func (s *DomainService) RetryProvision(ctx context.Context, p tenantdomain.Principal, domainID string) (*StatusResult, error) {
	ctx, span := s.tracer.Start(ctx, "domains.RetryProvision",
		trace.WithAttributes(attribute.String("domain.id", domainID)))
	defer span.End()

	d, err := s.domains.GetByID(ctx, s.pool, domainID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain", err)
	}
	if d == nil {
		return nil, errs.NotFound("domain not found").
			WithDetails(map[string]string{"domainId": domainID})
	}

	g, err := s.graphs.GetByDomainID(ctx, s.pool, domainID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain graph", err)
	}
	if g != nil && g.ProvisionStatus == domain.StatusOnline {
		return nil, errs.GraphNotReady("graph is already online; retry not required").
			WithDetails(map[string]string{"domainId": domainID})
	}

	if err := s.inTx(ctx, func(tx db.DBTX) error {
		return s.graphs.MarkProvisioning(ctx, tx, domainID)
	}); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, domainID, audit.EventRetryRequested, p.UserID, "accepted", nil)
	s.dispatch(domainID, p.UserID)

	return &StatusResult{DomainID: domainID, ProvisionStatus: domain.StatusProvisioning}, nil
}

// DeleteDomain drops the domain's database and then removes the registry
// rows. A failed drop aborts the delete so rows are never orphaned from a
// still-live database.
func (s *DomainService) DeleteDomain(ctx context.Context, p tenantdomain.Principal, domainID string) error {
	ctx, span := s.tracer.Start(ctx, "domains.Delete",
		trace.WithAttributes(attribute.String("domain.id", domainID)))
	defer span.End()

	d, err := s.domains.GetByID(ctx, s.pool, domainID)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "load domain", err)
	}
	if d == nil {
		return errs.NotFound("domain not found").
			WithDetails(map[string]string{"domainId": domainID})
	}

	s.recorder.Record(ctx, domainID, audit.EventDropRequested, p.UserID, "", nil)
	if err := s.provisioner.Drop(ctx, s.pool, domainID); err != nil {
		return err
	}

	if err := s.inTx(ctx, func(tx db.DBTX) error {
		return s.domains.DeleteWithDependents(ctx, tx, domainID)
	}); err != nil {
		return err
	}

	s.recorder.Record(ctx, domainID, audit.EventDomainDeleted, p.UserID, "ok", nil)
	return nil
}

// EnsureProvision is the internal trigger: it creates the binding if it is
// missing and (re)dispatches the provisioning job. Safe to call repeatedly.
func (s *DomainService) EnsureProvision(ctx context.Context, domainID string) (*EnsureResult, error) {
	d, err := s.domains.GetByID(ctx, s.pool, domainID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain", err)
	}
	if d == nil {
		return nil, errs.NotFound("domain not found").
			WithDetails(map[string]string{"domainId": domainID})
	}

	g, err := s.graphs.GetByDomainID(ctx, s.pool, domainID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "load domain graph", err)
	}

	var idem string
	if g == nil {
		idem = newIdempotencyKey()
		if err := s.inTx(ctx, func(tx db.DBTX) error {
			return s.graphs.CreateInitial(ctx, tx, domainID, idem)
		}); err != nil {
			// Possible race with a concurrent trigger.
			if g, gerr := s.graphs.GetByDomainID(ctx, s.pool, domainID); gerr != nil || g == nil {
				s.recorder.Record(ctx, domainID, audit.EventProvisionRequested, actorServiceToken, "failed", nil)
				return nil, err
			}
			idem = ""
		}
		s.recorder.Record(ctx, domainID, audit.EventProvisionRequested, actorServiceToken, "accepted",
			map[string]string{"idempotencyKey": idem})
	} else {
		s.logger.Info("provision binding already exists",
			zap.String("domain_id", domainID),
			zap.String("provision_status", string(g.ProvisionStatus)))
		s.recorder.Record(ctx, domainID, audit.EventProvisionRequested, actorServiceToken, "already_exists",
			map[string]string{"provisionStatus": string(g.ProvisionStatus)})
	}

	if s.async {
		if err := s.dispatcher.Submit("provision:"+domainID, func(ctx context.Context) {
			s.runProvisionJob(ctx, domainID, actorServiceToken)
		}); err != nil {
			s.recorder.Record(ctx, domainID, audit.EventEnqueueFailed, actorServiceToken, "failed", nil)
			return nil, errs.Wrap(errs.KindInternal, "failed to enqueue provision job", err)
		}
	} else {
		s.runProvisionJob(ctx, domainID, actorServiceToken)
	}

	return &EnsureResult{
		DomainID:        domainID,
		ProvisionStatus: domain.StatusProvisioning,
		IdempotencyKey:  idem,
	}, nil
}
