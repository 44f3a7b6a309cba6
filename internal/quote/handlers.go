package quote

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/crm-quotes/internal/common"
)

// Handler exposes quote endpoints.
type Handler struct {
	service        *Service
	defaultPerPage int
	maxPerPage     int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service        *Service
	DefaultPerPage int
	MaxPerPage     int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, defaultPerPage: cfg.DefaultPerPage, maxPerPage: cfg.MaxPerPage}
}

// Preview handles POST /api/v1/quotes/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	form, ok := decodeForm(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Preview(r.Context(), form)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// Create handles POST /api/v1/quotes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	form, ok := decodeForm(w, r)
	if !ok {
		return
	}
	actor, _ := common.UserID(r.Context())
	detail, err := h.service.Create(r.Context(), actor, form)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/quotes/"+detail.ID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": detail})
}

// List handles GET /api/v1/quotes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, perPage := common.ParsePagination(r, h.defaultPerPage, h.maxPerPage)
	result, err := h.service.List(r.Context(), page, perPage)
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

// Get handles GET /api/v1/quotes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// Delete handles DELETE /api/v1/quotes/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPDF handles GET /api/v1/quotes/{id}/export.pdf.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, ContentTypePDF, ".pdf", ExportPDF)
}

// ExportXLSX handles GET /api/v1/quotes/{id}/export.xlsx.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, ContentTypeXLSX, ".xlsx", ExportXLSX)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, contentType, ext string, render func(Detail) ([]byte, error)) {
	if !h.ready(w) {
		return
	}
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	body, err := render(detail)
	if err != nil {
		common.WriteError(w, common.NewAppError("EXPORT_FAILED", "could not render quote", http.StatusInternalServerError, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+detail.Reference+ext+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func decodeForm(w http.ResponseWriter, r *http.Request) (Form, bool) {
	var form Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		common.WriteError(w, common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err))
		return Form{}, false
	}
	return form, true
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return false
	}
	return true
}
