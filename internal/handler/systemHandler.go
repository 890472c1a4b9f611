package handler

import (
	"net/http"
)

type SystemHandler struct {
	Base
}

func NewSystemHandler(d Deps) *SystemHandler {
	return &SystemHandler{Base: newBase(d, "handler.system")}
}

// HandleRate returns the cached DOGE/USD rate without waiting on the feed.
func (h *SystemHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rate cache not configured"})
		return
	}
	_ = h.rates.Rate()
	writeJSON(w, http.StatusOK, h.rates.State())
}

func (h *SystemHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
