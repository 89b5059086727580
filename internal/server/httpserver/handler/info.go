package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/meshkv/internal/infra/buildinfo"
)

// handleInfo handles GET /v1/info.
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := InfoResponse{
		Build:         buildinfo.Get(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.keys != nil {
		resp.Keys = h.keys.KeyCount()
	}
	if h.router != nil {
		resp.Subscriptions = h.router.Count()
		resp.Patterns = h.router.NumPat()
		resp.Channels = len(h.router.Channels(""))
	}
	if h.clients != nil {
		n := h.clients.Clients()
		resp.Clients = &n
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}
