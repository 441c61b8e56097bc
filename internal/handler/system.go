package handler

import (
	"net/http"

	"github.com/keygatehq/keygate/internal/store"
)

// SystemHandler serves liveness, readiness, and version endpoints.
type SystemHandler struct {
	store   *store.Store
	version string
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(st *store.Store, version string) *SystemHandler {
	return &SystemHandler{store: st, version: version}
}

// Health reports process liveness.
// GET /healthz
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready reports whether the backing store is reachable.
// GET /readyz
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"store":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"store":  h.store.Driver(),
	})
}
