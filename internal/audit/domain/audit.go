package domain

import "time"

// ProvisionAudit is one append-only record of a provisioning lifecycle
// event. Rows carry no foreign key so history survives domain deletion.
type ProvisionAudit struct {
	ID        string
	DomainID  string
	Event     string
	Actor     string
	Result    string
	Payload   map[string]string
	CreatedAt time.Time
}
