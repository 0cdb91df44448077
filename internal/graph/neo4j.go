package graph

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"graph-control-plane/backend/internal/errs"
)

const systemDatabase = "system"

// Neo4jAdmin implements Admin over the official Bolt driver, authenticated
// as the shared administrative principal.
type Neo4jAdmin struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jAdmin builds a driver for the administrative endpoint. The
// password is held by the driver only; it is never logged. Connectivity is
// not verified here; the driver reconnects as the server becomes reachable.
func NewNeo4jAdmin(uri, username, password string) (*Neo4jAdmin, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errs.Wrap(errs.KindAdminUnavailable, "failed to create graph admin driver", err)
	}
	return &Neo4jAdmin{driver: driver}, nil
}

// VerifyConnectivity pings the administrative endpoint.
func (a *Neo4jAdmin) VerifyConnectivity(ctx context.Context) error {
	if err := a.driver.VerifyConnectivity(ctx); err != nil {
		return errs.Wrap(errs.KindAdminUnavailable, "graph admin endpoint unreachable", err)
	}
	return nil
}

func (a *Neo4jAdmin) systemSession(ctx context.Context) neo4j.SessionWithContext {
	return a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: systemDatabase})
}

// SupportsMultiDatabase probes with SHOW DATABASES. Community servers
// reject the command; that is reported as false, not as an error.
func (a *Neo4jAdmin) SupportsMultiDatabase(ctx context.Context) (bool, error) {
	session := a.systemSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "SHOW DATABASES", nil)
	if err != nil {
		return false, nil
	}
	if _, err := result.Consume(ctx); err != nil {
		return false, nil
	}
	return true, nil
}

// CreateDatabaseIfNotExists creates the named database. Safe to repeat.
func (a *Neo4jAdmin) CreateDatabaseIfNotExists(ctx context.Context, name string) error {
	session := a.systemSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "CREATE DATABASE $db IF NOT EXISTS", map[string]any{"db": name})
	if err != nil {
		return errs.Wrap(errs.KindAdminUnavailable, "CREATE DATABASE failed", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return errs.Wrap(errs.KindAdminUnavailable, "CREATE DATABASE failed", err)
	}
	return nil
}

// DatabaseStatus reads the database's currentStatus from the system
// database. A missing database is (_, false, nil).
func (a *Neo4jAdmin) DatabaseStatus(ctx context.Context, name string) (string, bool, error) {
	session := a.systemSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "SHOW DATABASE $db", map[string]any{"db": name})
	if err != nil {
		return "", false, errs.Wrap(errs.KindAdminUnavailable, "SHOW DATABASE failed", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		// No row means the database does not exist (yet).
		return "", false, nil
	}
	if v, ok := record.Get("currentStatus"); ok {
		if s, ok := v.(string); ok {
			return strings.ToLower(s), true, nil
		}
	}
	if v, ok := record.Get("status"); ok {
		if s, ok := v.(string); ok {
			return strings.ToLower(s), true, nil
		}
	}
	return "", true, nil
}

// DropDatabaseIfExists drops the named database. Safe to repeat; fails on
// servers without multi-database support.
func (a *Neo4jAdmin) DropDatabaseIfExists(ctx context.Context, name string) error {
	session := a.systemSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "DROP DATABASE $db IF EXISTS", map[string]any{"db": name})
	if err != nil {
		return errs.Wrap(errs.KindAdminUnavailable, "DROP DATABASE failed", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return errs.Wrap(errs.KindAdminUnavailable, "DROP DATABASE failed", err)
	}
	return nil
}

// Close releases the driver.
func (a *Neo4jAdmin) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}
