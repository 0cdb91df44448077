// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev tenant (owner dev-user-001) exists.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"graph-control-plane/backend/internal/config"
	"graph-control-plane/backend/internal/db"
	domainsdomain "graph-control-plane/backend/internal/domains/domain"
	domainsrepo "graph-control-plane/backend/internal/domains/repository"
	tenantdomain "graph-control-plane/backend/internal/tenant/domain"
	tenantrepo "graph-control-plane/backend/internal/tenant/repository"
)

const (
	devUserID    = "dev-user-001"
	devUserEmail = "dev@example.com"
	devDomain    = "dev.example.com"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	tenants := tenantrepo.NewPostgresRepository()
	domains := domainsrepo.NewPostgresDomainRepository()
	graphs := domainsrepo.NewPostgresGraphRepository()

	existing, err := tenants.FindByOwnerUserID(ctx, conn, devUserID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev tenant exists). Skipping.")
		os.Exit(0)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	ten := &tenantdomain.Tenant{
		ID:          uuid.New().String(),
		Name:        "Dev Workspace",
		OwnerUserID: devUserID,
		OwnerEmail:  devUserEmail,
		Plan:        tenantdomain.PlanPro,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tenants.Create(ctx, tx, ten); err != nil {
		log.Fatalf("create tenant: %v", err)
	}

	dom := &domainsdomain.Domain{
		ID:        uuid.New().String(),
		TenantID:  ten.ID,
		Name:      devDomain,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := domains.Create(ctx, tx, dom); err != nil {
		log.Fatalf("create domain: %v", err)
	}
	if err := graphs.CreateInitial(ctx, tx, dom.ID, "idem_"+strings.ReplaceAll(uuid.New().String(), "-", "")); err != nil {
		log.Fatalf("create domain graph: %v", err)
	}

	if err := tx.Commit(); err != nil && err != sql.ErrTxDone {
		log.Fatalf("commit: %v", err)
	}

	log.Println("Seed completed successfully.")
	log.Printf("Dev principal: X-User-Id=%s X-User-Email=%s, domain %s\n", devUserID, devUserEmail, devDomain)
}
