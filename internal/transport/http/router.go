// Package httptransport exposes the provisioning API over HTTP. Handlers are
// a thin layer: they decode, delegate to domain services, and map results
// onto the shared JSON envelopes, so transport concerns stay isolated from
// saga logic.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provisor/internal/platform/metrics"
	"provisor/internal/platform/middleware"
	"provisor/pkg/platform/httputil"
)

// defaultAPITimeout bounds one API request. It is sized for the worst-case
// synchronous provisioning run (every step at its directory call timeout,
// plus compensation), not for reads.
const defaultAPITimeout = 2 * time.Minute

// Handler wires the provisioning endpoints to their services.
type Handler struct {
	lifecycle LifecycleService
	requests  RequestService
	audit     AuditReader

	logger  *slog.Logger
	metrics *metrics.Metrics

	jwtValidator middleware.JWTValidator
	apiKeys      middleware.APIKeyValidator
	apiTimeout   time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithAuth enables credential checks on the API routes. Either validator may
// be nil to disable that mode; passing both nil leaves the API open.
func WithAuth(jwtValidator middleware.JWTValidator, apiKeys middleware.APIKeyValidator) Option {
	return func(h *Handler) {
		h.jwtValidator = jwtValidator
		h.apiKeys = apiKeys
	}
}

// WithAPITimeout overrides the per-request deadline on API routes.
func WithAPITimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.apiTimeout = d
		}
	}
}

// New creates the transport handler.
func New(
	lifecycle LifecycleService,
	requests RequestService,
	auditReader AuditReader,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	opts ...Option,
) *Handler {
	h := &Handler{
		lifecycle:  lifecycle,
		requests:   requests,
		audit:      auditReader,
		logger:     logger,
		metrics:    metrics,
		apiTimeout: defaultAPITimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the versioned API and the operational endpoints on the
// router. Health and metrics stay outside the API chain so probes are never
// blocked by auth and the metrics endpoint does not measure itself.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.RequestTime)
	api.Use(middleware.ClientMetadata)
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.Timeout(h.apiTimeout))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.LatencyMiddleware(h.metrics))
	if h.jwtValidator != nil || h.apiKeys != nil {
		api.Use(middleware.RequireAuth(h.jwtValidator, h.apiKeys, h.logger))
	}

	api.Post("/lifecycle/events", h.handleLifecycleEvent)
	api.Get("/provisioning/requests", h.handleListRequests)
	api.Get("/provisioning/requests/{id}", h.handleGetRequest)
	api.Post("/provisioning/requests/{id}/cancel", h.handleCancelRequest)
	api.Get("/audit/entries", h.handleListAuditEntries)

	r.Mount("/api/v1", api)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
