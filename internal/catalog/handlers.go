package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/crm-quotes/internal/common"
)

// Handler exposes the read-only catalog used by the quote editor.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/formulas", h.Formulas)
	r.Get("/formulas/{id}", h.Formula)
	r.Get("/equipment", h.EquipmentList)
	r.Get("/equipment/{id}", h.Equipment)
}

// Formulas handles GET /api/v1/formulas.
func (h *Handler) Formulas(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	rows, err := h.service.ListFormulas(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Formula handles GET /api/v1/formulas/{id}.
func (h *Handler) Formula(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	formula, err := h.service.GetFormula(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": formula})
}

// EquipmentList handles GET /api/v1/equipment with search and pagination.
func (h *Handler) EquipmentList(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	params, err := h.service.ParseEquipmentParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.service.ListEquipment(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// Equipment handles GET /api/v1/equipment/{id}.
func (h *Handler) Equipment(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	item, err := h.service.GetEquipment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return false
	}
	return true
}
