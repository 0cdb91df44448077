// Package handler exposes the domain lifecycle over HTTP. Authentication is
// terminated upstream; the gateway forwards the principal in X-User-Id and
// X-User-Email headers.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"graph-control-plane/backend/internal/domains/domain"
	"graph-control-plane/backend/internal/domains/service"
	"graph-control-plane/backend/internal/errs"
	"graph-control-plane/backend/internal/httpx"
	tenantdomain "graph-control-plane/backend/internal/tenant/domain"
)

// Orchestrator is the slice of the domain service the handler needs.
type Orchestrator interface {
	CreateDomain(ctx context.Context, p tenantdomain.Principal, name, icon string) (*service.CreateDomainResult, error)
	ListDomains(ctx context.Context, p tenantdomain.Principal, statusFilter domain.ProvisionStatus, page, pageSize int) (*service.ListResult, error)
	GetDomainByName(ctx context.Context, p tenantdomain.Principal, name string) (*service.DomainDetail, error)
	GetStatus(ctx context.Context, domainID string) (*service.StatusResult, error)
	GetBindingStatus(ctx context.Context, domainID string) (*service.StatusResult, error)
	RetryProvision(ctx context.Context, p tenantdomain.Principal, domainID string) (*service.StatusResult, error)
	DeleteDomain(ctx context.Context, p tenantdomain.Principal, domainID string) error
	EnsureProvision(ctx context.Context, domainID string) (*service.EnsureResult, error)
}

// DomainHandler serves the tenant-facing domain routes.
type DomainHandler struct {
	svc    Orchestrator
	logger *zap.Logger
}

// NewDomainHandler returns a DomainHandler.
func NewDomainHandler(svc Orchestrator, logger *zap.Logger) *DomainHandler {
	return &DomainHandler{svc: svc, logger: logger}
}

// Register mounts the tenant-facing routes on mux.
func (h *DomainHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /domains", h.create)
	mux.HandleFunc("GET /domains", h.list)
	mux.HandleFunc("GET /domains/{domainId}/status", h.status)
	mux.HandleFunc("GET /domains/{name}", h.getByName)
	mux.HandleFunc("POST /domains/{domainId}/provision/retry", h.retry)
	mux.HandleFunc("DELETE /domains/{domainId}", h.delete)
}

func principalFrom(r *http.Request) (tenantdomain.Principal, bool) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return tenantdomain.Principal{}, false
	}
	return tenantdomain.Principal{UserID: userID, Email: r.Header.Get("X-User-Email")}, true
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{
		"error":     "UNAUTHORIZED",
		"message":   "missing principal",
		"status":    http.StatusUnauthorized,
		"requestId": httpx.RequestIDFrom(r.Context()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type createDomainRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type createDomainResponse struct {
	DomainID        string    `json:"domainId"`
	TenantID        string    `json:"tenantId"`
	Name            string    `json:"name"`
	Icon            string    `json:"icon"`
	ProvisionStatus string    `json:"provisionStatus"`
	SeedStatus      string    `json:"seedStatus"`
	IdempotencyKey  string    `json:"idempotencyKey"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (h *DomainHandler) create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeUnauthorized(w, r)
		return
	}
	var req createDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, errs.Validation("invalid JSON body"))
		return
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	res, err := h.svc.CreateDomain(r.Context(), p, name, req.Icon)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.logger.Info("domain create accepted",
		zap.String("domain_id", res.DomainID),
		zap.String("name", res.Name),
		zap.String("user_id", p.UserID))

	w.Header().Set("Location", "/domains/"+res.DomainID+"/status")
	httpx.WriteJSON(w, http.StatusAccepted, createDomainResponse{
		DomainID:        res.DomainID,
		TenantID:        res.TenantID,
		Name:            res.Name,
		Icon:            res.Icon,
		ProvisionStatus: string(res.ProvisionStatus),
		SeedStatus:      res.SeedStatus,
		IdempotencyKey:  res.IdempotencyKey,
		CreatedAt:       res.CreatedAt,
		UpdatedAt:       res.UpdatedAt,
	})
}

type listItem struct {
	DomainID        string `json:"domainId"`
	Name            string `json:"name"`
	Icon            string `json:"icon"`
	ProvisionStatus string `json:"provisionStatus"`
	SeedStatus      string `json:"seedStatus"`
}

type listResponse struct {
	Items    []listItem `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
}

func (h *DomainHandler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	statusFilter := domain.ProvisionStatus(q.Get("statusFilter"))

	res, err := h.svc.ListDomains(r.Context(), p, statusFilter, page, pageSize)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	items := make([]listItem, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, listItem{
			DomainID:        it.DomainID,
			Name:            it.Name,
			Icon:            it.Icon,
			ProvisionStatus: string(it.ProvisionStatus),
			SeedStatus:      it.SeedStatus,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{
		Items: items, Total: res.Total, Page: res.Page, PageSize: res.PageSize,
	})
}

type statusResponse struct {
	DomainID        string    `json:"domainId"`
	ProvisionStatus string    `json:"provisionStatus"`
	FailReason      *string   `json:"failReason"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toStatusResponse(st *service.StatusResult) statusResponse {
	return statusResponse{
		DomainID:        st.DomainID,
		ProvisionStatus: string(st.ProvisionStatus),
		FailReason:      st.FailReason,
		UpdatedAt:       st.UpdatedAt,
	}
}

func (h *DomainHandler) status(w http.ResponseWriter, r *http.Request) {
	if _, ok := principalFrom(r); !ok {
		writeUnauthorized(w, r)
		return
	}
	st, err := h.svc.GetStatus(r.Context(), r.PathValue("domainId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStatusResponse(st))
}

type detailResponse struct {
	DomainID        string    `json:"domainId"`
	TenantID        string    `json:"tenantId"`
	Name            string    `json:"name"`
	Icon            string    `json:"icon"`
	ProvisionStatus string    `json:"provisionStatus"`
	SeedStatus      string    `json:"seedStatus"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (h *DomainHandler) getByName(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeUnauthorized(w, r)
		return
	}
	name := strings.ToLower(strings.TrimSpace(r.PathValue("name")))
	d, err := h.svc.GetDomainByName(r.Context(), p, name)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, detailResponse{
		DomainID:        d.DomainID,
		TenantID:        d.TenantID,
		Name:            d.Name,
		Icon:            d.Icon,
		ProvisionStatus: string(d.ProvisionStatus),
		SeedStatus:      d.SeedStatus,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	})
}

func (h *DomainHandler) retry(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeUnauthorized(w, r)
		return
	}
	st, err := h.svc.RetryProvision(r.Context(), p, r.PathValue("domainId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"domainId":        st.DomainID,
		"provisionStatus": string(st.ProvisionStatus),
	})
}

func (h *DomainHandler) delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeUnauthorized(w, r)
		return
	}
	// dropGraph query param is accepted for contract compatibility; the
	// graph is always dropped.
	if err := h.svc.DeleteDomain(r.Context(), p, r.PathValue("domainId")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InternalHandler serves the service-to-service provisioning trigger,
// authenticated by a shared token.
type InternalHandler struct {
	svc    Orchestrator
	token  string
	logger *zap.Logger
}

// NewInternalHandler returns an InternalHandler. When token is empty every
// request is rejected.
func NewInternalHandler(svc Orchestrator, token string, logger *zap.Logger) *InternalHandler {
	return &InternalHandler{svc: svc, token: token, logger: logger}
}

// Register mounts the internal routes on mux.
func (h *InternalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/internal/provision", h.provision)
	mux.HandleFunc("GET /api/domains/{domainId}/provision-status", h.provisionStatus)
}

func (h *InternalHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	got := r.Header.Get("X-Internal-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

func writeForbidden(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusForbidden, map[string]any{
		"error":     "FORBIDDEN",
		"message":   "forbidden",
		"status":    http.StatusForbidden,
		"requestId": httpx.RequestIDFrom(r.Context()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type internalProvisionRequest struct {
	DomainID string `json:"domainId"`
}

func (h *InternalHandler) provision(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.Warn("internal provision rejected", zap.String("remote_addr", r.RemoteAddr))
		writeForbidden(w, r)
		return
	}
	var req internalProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DomainID == "" {
		httpx.WriteError(w, r, errs.Validation("domainId is required"))
		return
	}

	res, err := h.svc.EnsureProvision(r.Context(), req.DomainID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{
		"domainId":        res.DomainID,
		"provisionStatus": string(res.ProvisionStatus),
		"idempotencyKey":  res.IdempotencyKey,
	})
}

func (h *InternalHandler) provisionStatus(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeForbidden(w, r)
		return
	}
	st, err := h.svc.GetBindingStatus(r.Context(), r.PathValue("domainId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStatusResponse(st))
}
