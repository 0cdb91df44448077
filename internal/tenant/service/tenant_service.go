package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"graph-control-plane/backend/internal/db"
	"graph-control-plane/backend/internal/tenant/domain"
)

// TenantRepo is the minimal tenant repository needed by the tenant service.
type TenantRepo interface {
	FindByOwnerUserID(ctx context.Context, q db.DBTX, ownerUserID string) (*domain.Tenant, error)
	Create(ctx context.Context, q db.DBTX, t *domain.Tenant) error
}

// TenantService owns find-or-create of the tenant backing a principal.
// Tenants are created lazily on the first domain-creation request and are
// never deleted by this subsystem.
type TenantService struct {
	repo TenantRepo
}

// NewTenantService returns a TenantService using the given repository.
func NewTenantService(repo TenantRepo) *TenantService {
	return &TenantService{repo: repo}
}

// FindOrCreateFor returns the existing tenant owned by the principal or
// creates one on the STANDARD plan. The workspace name is derived from the
// email local-part.
func (s *TenantService) FindOrCreateFor(ctx context.Context, q db.DBTX, p domain.Principal) (*domain.Tenant, error) {
	existing, err := s.repo.FindByOwnerUserID(ctx, q, p.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	t := &domain.Tenant{
		ID:          uuid.New().String(),
		Name:        deriveWorkspaceName(p.Email),
		OwnerUserID: p.UserID,
		OwnerEmail:  p.Email,
		Plan:        domain.PlanStandard,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, q, t); err != nil {
		return nil, err
	}
	return t, nil
}

func deriveWorkspaceName(email string) string {
	if email == "" {
		return "Workspace"
	}
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Workspace"
	}
	return local + "'s Workspace"
}
