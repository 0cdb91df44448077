package domain

import (
	"errors"
	"time"
)

// Principal identifies the caller as resolved by the boundary layer.
type Principal struct {
	UserID string
	Email  string
}

// Plan is a tenant billing plan. Each plan carries a fixed domain quota.
type Plan string

const (
	PlanStandard Plan = "STANDARD"
	PlanPro      Plan = "PRO"
	PlanUltimate Plan = "ULTIMATE"
)

// DomainQuota returns the number of domains the plan allows. Unknown plans
// fall back to the STANDARD limit.
func (p Plan) DomainQuota() int {
	switch p {
	case PlanPro:
		return 5
	case PlanUltimate:
		return 20
	default:
		return 1
	}
}

// Tenant is the billing/ownership boundary grouping domains for a principal.
type Tenant struct {
	ID          string
	Name        string
	OwnerUserID string
	OwnerEmail  string
	Plan        Plan
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate validates the tenant for persistence.
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if t.OwnerUserID == "" {
		return errors.New("owner user id is required")
	}
	if t.Plan == "" {
		t.Plan = PlanStandard
	}
	return nil
}
