// Package server assembles the HTTP server: routes, middleware, and
// timeouts.
package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	domainhandler "graph-control-plane/backend/internal/domains/handler"
	healthhandler "graph-control-plane/backend/internal/health/handler"
	"graph-control-plane/backend/internal/httpx"
)

// Deps holds the handler dependencies for the HTTP server.
type Deps struct {
	// Domains is the domain orchestration service behind every route.
	Domains domainhandler.Orchestrator
	// HealthPinger is used by the readiness probe (e.g. *sql.DB). May be nil.
	HealthPinger healthhandler.Pinger
	// InternalToken authenticates the internal provisioning trigger. When
	// empty the internal routes reject every request.
	InternalToken string
	Logger        *zap.Logger
}

// NewRouter builds the route table with the standard middleware chain.
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	domainhandler.NewDomainHandler(deps.Domains, deps.Logger).Register(mux)
	domainhandler.NewInternalHandler(deps.Domains, deps.InternalToken, deps.Logger).Register(mux)
	healthhandler.NewHandler(deps.HealthPinger).Register(mux)

	var h http.Handler = mux
	h = httpx.WithAccessLog(deps.Logger, h)
	h = httpx.WithRecovery(deps.Logger, h)
	h = httpx.WithRequestID(h)
	return h
}

// New returns an http.Server listening on addr with sane timeouts.
func New(addr string, deps Deps) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
