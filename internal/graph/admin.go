// Package graph provisions and drops per-domain databases on a Neo4j
// cluster through a shared administrative principal.
package graph

import "context"

// Admin executes system-level operations against the graph cluster.
// Implementations must be safe for concurrent use.
type Admin interface {
	// SupportsMultiDatabase reports whether the server accepts
	// multi-database administration commands (Enterprise). Community
	// servers return false without error.
	SupportsMultiDatabase(ctx context.Context) (bool, error)

	// CreateDatabaseIfNotExists issues CREATE DATABASE ... IF NOT EXISTS.
	CreateDatabaseIfNotExists(ctx context.Context, name string) error

	// DatabaseStatus returns the current status of the named database and
	// whether it exists.
	DatabaseStatus(ctx context.Context, name string) (status string, exists bool, err error)

	// DropDatabaseIfExists issues DROP DATABASE ... IF EXISTS.
	DropDatabaseIfExists(ctx context.Context, name string) error

	// Close releases the underlying driver.
	Close(ctx context.Context) error
}
