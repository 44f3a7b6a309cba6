package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/crm-quotes/internal/common"
)

// Handler exposes a quote's activity trail.
type Handler struct {
	Service *Service
}

// Activity handles GET /api/v1/quotes/{id}/activity.
func (h Handler) Activity(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil || h.Service.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	entries, err := h.Service.Activity(r.Context(), chi.URLParam(r, "id"), common.AtoiDefault(r.URL.Query().Get("limit"), 50))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
