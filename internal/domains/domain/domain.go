// Package domain defines the Domain and DomainGraph records: a named,
// tenant-scoped unit and the lifecycle/credential binding to its backing
// graph-database resource.
package domain

import (
	"regexp"
	"time"

	"graph-control-plane/backend/internal/errs"
)

// ProvisionStatus is the DomainGraph lifecycle state.
type ProvisionStatus string

const (
	// StatusProvisioning is the initial state, set at row creation and
	// re-entered only via explicit retry.
	StatusProvisioning ProvisionStatus = "provisioning"
	// StatusOnline is the terminal success state.
	StatusOnline ProvisionStatus = "online"
	// StatusFailed is terminal until an explicit retry.
	StatusFailed ProvisionStatus = "failed"
)

// SeedStatusNotStarted is the initial seed status. Seeding is driven by a
// separate pipeline; this subsystem only records and surfaces the value.
const SeedStatusNotStarted = "not_started"

// CanTransition reports whether moving from to next a valid lifecycle edge.
// Valid edges: provisioning→online, provisioning→failed, and re-entering
// provisioning from failed or online via explicit retry. The retry edges
// are only reachable through RetryProvision, which guards online itself.
func (s ProvisionStatus) CanTransition(next ProvisionStatus) bool {
	switch s {
	case StatusProvisioning:
		return next == StatusOnline || next == StatusFailed || next == StatusProvisioning
	case StatusFailed, StatusOnline:
		return next == StatusProvisioning
	default:
		return false
	}
}

// Domain is a tenant-scoped request for an isolated graph database.
type Domain struct {
	ID        string
	TenantID  string
	Name      string
	Icon      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DomainGraph binds a Domain 1–1 to its backing graph resource. The secret
// is held only encrypted; plaintext never touches the registry or logs.
type DomainGraph struct {
	DomainID        string
	ProvisionStatus ProvisionStatus
	SeedStatus      string
	IdempotencyKey  string
	Neo4jURI        string
	Neo4jDatabase   string
	Neo4jUsername   string
	Neo4jSecretEnc  string
	CredVersion     int
	FailReason      *string
	ProvisionedAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// fqdnRe matches FQDN-shaped names: dot-separated labels of letters,
// digits, and inner hyphens, each at most 63 characters.
var fqdnRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`)

// ValidateName rejects domain names that are not 3–253 characters of
// FQDN-shaped text.
func ValidateName(name string) error {
	if len(name) < 3 || len(name) > 253 {
		return errs.Validation("invalid domain name length").
			WithDetails(map[string]string{"field": "name"})
	}
	if !fqdnRe.MatchString(name) {
		return errs.Validation("invalid domain name format (FQDN required)").
			WithDetails(map[string]string{"field": "name"})
	}
	return nil
}
