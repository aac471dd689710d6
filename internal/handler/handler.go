package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hydrotwin/internal/dashboard"
	"hydrotwin/internal/domain"
	"hydrotwin/internal/logging"
	"hydrotwin/internal/override"
	"hydrotwin/internal/repository"
	"hydrotwin/internal/service"
	"hydrotwin/internal/topology"
)

// Dashboard is the session the API reads from and drives
type Dashboard interface {
	Mount(ctx context.Context) error
	Unmount(ctx context.Context) error
	Refresh(ctx context.Context) error
	ResetOverrides(ctx context.Context) (int, error)
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
	Graph(ctx context.Context) (*domain.Graph, error)
	Overrides(ctx context.Context) ([]override.Entry, error)
	Status(ctx context.Context) (dashboard.Status, error)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler serves the dashboard and network APIs
type Handler struct {
	dash   Dashboard
	svc    *service.NetworkService
	logger *slog.Logger
}

// New creates a handler. svc may be nil when the topology comes from a
// read-only source; the operator endpoints then answer 501.
func New(dash Dashboard, svc *service.NetworkService, logger *slog.Logger) *Handler {
	return &Handler{
		dash:   dash,
		svc:    svc,
		logger: logging.OrNop(logger).With("component", "api"),
	}
}

// Routes registers the API on mux
func (h *Handler) Routes(mux *http.ServeMux) {
	// Dashboard session
	mux.HandleFunc("GET "+topology.TopologyPath, h.GetTopology)
	mux.HandleFunc("GET /api/render", h.GetRender)
	mux.HandleFunc("GET /api/status", h.GetStatus)
	mux.HandleFunc("GET /api/overrides", h.ListOverrides)
	mux.HandleFunc("POST /api/overrides/reset", h.ResetOverrides)
	mux.HandleFunc("POST /api/refresh", h.Refresh)
	mux.HandleFunc("POST /api/mount", h.Mount)
	mux.HandleFunc("POST /api/unmount", h.Unmount)

	// Operator actions on the store
	mux.HandleFunc("PUT /api/edges/{id}/status", h.UpdateEdgeStatus)
	mux.HandleFunc("POST /api/import/{format}", h.Import)
	mux.HandleFunc("GET /api/export/{format}", h.Export)

	mux.HandleFunc("GET /health", h.Health)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// sessionError maps session errors to responses
func (h *Handler) sessionError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, dashboard.ErrClosed):
		writeError(w, "Dashboard stopped", err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, "Request cancelled", err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, topology.ErrFetch):
		writeError(w, "Topology unavailable", err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error(what+" failed", "error", err)
		writeError(w, what+" failed", err.Error(), http.StatusInternalServerError)
	}
}

// serviceError maps network service errors to responses
func (h *Handler) serviceError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalid):
		writeError(w, "Invalid request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, "Not found", err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrImportUnsupported):
		writeError(w, "Not supported", err.Error(), http.StatusNotImplemented)
	default:
		h.logger.Error(what+" failed", "error", err)
		writeError(w, what+" failed", err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, msg, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: msg, Details: details}, statusCode)
}
