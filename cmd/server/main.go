package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	auditpkg "graph-control-plane/backend/internal/audit"
	auditrepo "graph-control-plane/backend/internal/audit/repository"
	"graph-control-plane/backend/internal/config"
	"graph-control-plane/backend/internal/db"
	domainsrepo "graph-control-plane/backend/internal/domains/repository"
	domainsservice "graph-control-plane/backend/internal/domains/service"
	"graph-control-plane/backend/internal/graph"
	"graph-control-plane/backend/internal/jobs"
	"graph-control-plane/backend/internal/security"
	"graph-control-plane/backend/internal/server"
	"graph-control-plane/backend/internal/telemetry"
	"graph-control-plane/backend/internal/telemetry/otel"
	tenantrepo "graph-control-plane/backend/internal/tenant/repository"
	tenantservice "graph-control-plane/backend/internal/tenant/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPTraceEndpoint, "graph-control-plane", false)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	key, err := security.KeyFromConfig(cfg.RegistryEncKey)
	if err != nil {
		logger.Fatal("registry encryption key", zap.Error(err))
	}
	vault, err := security.NewVault(key)
	if err != nil {
		logger.Fatal("registry encryption key", zap.Error(err))
	}

	admin, err := graph.NewNeo4jAdmin(cfg.Neo4jAdminURI, cfg.Neo4jAdminUser, cfg.Neo4jAdminPass)
	if err != nil {
		logger.Fatal("graph admin", zap.Error(err))
	}
	defer func() { _ = admin.Close(context.Background()) }()
	if err := admin.VerifyConnectivity(ctx); err != nil {
		// Provisioning jobs will fail and can be retried once the cluster
		// is reachable; the registry API stays up.
		logger.Warn("graph admin endpoint unreachable at startup", zap.Error(err))
	}

	domainRepo := domainsrepo.NewPostgresDomainRepository()
	graphRepo := domainsrepo.NewPostgresGraphRepository()
	tenantSvc := tenantservice.NewTenantService(tenantrepo.NewPostgresRepository())
	recorder := auditpkg.NewLogger(pool, auditrepo.NewPostgresRepository(), logger)

	provisioner := graph.NewProvisioner(admin, vault, domainRepo, graphRepo, graph.ProvisionerConfig{
		PublicURI:     cfg.Neo4jPublicURI,
		AdminUser:     cfg.Neo4jAdminUser,
		AdminPass:     cfg.Neo4jAdminPass,
		OnlineTimeout: cfg.OnlineTimeout(),
	}, logger)

	workerPool := jobs.NewPool(cfg.ProvisionWorkers, cfg.ProvisionQueueSize, logger)

	domainSvc := domainsservice.NewDomainService(
		pool, domainRepo, graphRepo, tenantSvc, provisioner, workerPool, recorder, logger, cfg.ProvisionAsync)

	srv := server.New(cfg.HTTPAddr, server.Deps{
		Domains:       domainSvc,
		HealthPinger:  pool,
		InternalToken: cfg.InternalProvisionToken,
		Logger:        logger,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	// Let in-flight provisioning jobs finish; they bound their own waits.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := workerPool.Stop(stopCtx); err != nil {
		logger.Error("worker pool shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
