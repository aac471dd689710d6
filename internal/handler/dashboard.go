package handler

import (
	"net/http"
)

// GetTopology returns the latest snapshot the dashboard applied. Another
// hydrotwin instance can poll this endpoint as its topology source.
func (h *Handler) GetTopology(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dash.Snapshot(r.Context())
	if err != nil {
		h.sessionError(w, "Get topology", err)
		return
	}
	if snap == nil && h.svc != nil {
		// not mounted yet; read through to the store
		snap, err = h.svc.Topology(r.Context())
		if err != nil {
			h.serviceError(w, "Get topology", err)
			return
		}
	}
	if snap == nil {
		writeError(w, "No snapshot yet", "the dashboard has not fetched the topology", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap, http.StatusOK)
}

// GetRender returns the graph currently drawn on the map
func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	graph, err := h.dash.Graph(r.Context())
	if err != nil {
		h.sessionError(w, "Get render", err)
		return
	}
	if graph == nil {
		writeError(w, "Nothing rendered", "the dashboard is not mounted or has no snapshot", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, graph, http.StatusOK)
}

// GetStatus returns the session status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.dash.Status(r.Context())
	if err != nil {
		h.sessionError(w, "Get status", err)
		return
	}
	writeJSON(w, st, http.StatusOK)
}

// ListOverrides returns the pending overrides
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	entries, err := h.dash.Overrides(r.Context())
	if err != nil {
		h.sessionError(w, "List overrides", err)
		return
	}
	writeJSON(w, entries, http.StatusOK)
}

// ResetOverrides clears the override ledger
func (h *Handler) ResetOverrides(w http.ResponseWriter, r *http.Request) {
	n, err := h.dash.ResetOverrides(r.Context())
	if err != nil {
		h.sessionError(w, "Reset overrides", err)
		return
	}
	h.logger.Info("overrides reset", "cleared", n)
	writeJSON(w, map[string]int{"cleared": n}, http.StatusOK)
}

// Refresh fetches a snapshot immediately
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.Refresh(r.Context()); err != nil {
		h.sessionError(w, "Refresh", err)
		return
	}
	writeJSON(w, map[string]string{"status": "refreshed"}, http.StatusAccepted)
}

// Mount starts the dashboard session
func (h *Handler) Mount(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.Mount(r.Context()); err != nil {
		h.sessionError(w, "Mount", err)
		return
	}
	writeJSON(w, map[string]string{"status": "mounted"}, http.StatusOK)
}

// Unmount stops the dashboard session and releases the map
func (h *Handler) Unmount(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.Unmount(r.Context()); err != nil {
		h.sessionError(w, "Unmount", err)
		return
	}
	writeJSON(w, map[string]string{"status": "unmounted"}, http.StatusOK)
}
