package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"hydrotwin/internal/service"
)

// maxSeedBytes bounds an uploaded seed file
const maxSeedBytes = 16 << 20

func (h *Handler) requireService(w http.ResponseWriter) bool {
	if h.svc == nil {
		writeError(w, "Not supported", "the topology source is read-only", http.StatusNotImplemented)
		return false
	}
	return true
}

// UpdateEdgeStatus changes the status of one pipe in the store
func (h *Handler) UpdateEdgeStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireService(w) {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "Invalid edge ID", "Edge ID is required", http.StatusBadRequest)
		return
	}

	var req service.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	change, err := h.svc.UpdateEdgeStatus(r.Context(), id, req)
	if err != nil {
		h.serviceError(w, "Update edge status", err)
		return
	}
	writeJSON(w, change, http.StatusOK)
}

// Import loads a seed file from the request body. ?replace=true clears the
// store first.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if !h.requireService(w) {
		return
	}

	replace := false
	if v := r.URL.Query().Get("replace"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, "Invalid replace flag", err.Error(), http.StatusBadRequest)
			return
		}
		replace = b
	}

	body := http.MaxBytesReader(w, r.Body, maxSeedBytes)
	result, err := h.svc.ImportSeed(r.Context(), body, r.PathValue("format"), replace)
	if err != nil {
		h.serviceError(w, "Import", err)
		return
	}
	writeJSON(w, result, http.StatusOK)
}

// Export downloads the stored network
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.requireService(w) {
		return
	}

	format := r.PathValue("format")
	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=network.json")
	case "yaml", "yml":
		w.Header().Set("Content-Type", "application/x-yaml")
		w.Header().Set("Content-Disposition", "attachment; filename=network.yml")
	default:
		writeError(w, "Invalid format", "format must be json or yaml", http.StatusBadRequest)
		return
	}

	if err := h.svc.Export(r.Context(), w, format); err != nil {
		// headers are already out
		h.logger.Error("export failed", "format", format, "error", err)
	}
}
