package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/ReputationGo/internal/service"
	"github.com/utafrali/ReputationGo/pkg/httputil"
	"github.com/utafrali/ReputationGo/pkg/middleware"
	"github.com/utafrali/ReputationGo/pkg/validator"
)

// TemplateHandler handles HTTP requests for response templates.
type TemplateHandler struct {
	templates *service.TemplateService
	logger    *slog.Logger
}

// NewTemplateHandler creates a new template HTTP handler.
func NewTemplateHandler(templates *service.TemplateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, logger: logger}
}

// RenderRequest is the JSON request body for rendering a template.
type RenderRequest struct {
	ReviewID  string            `json:"review_id" validate:"required"`
	Overrides map[string]string `json:"overrides,omitempty"`
}

// RenderResponse carries the rendered text.
type RenderResponse struct {
	TemplateID string `json:"template_id"`
	ReviewID   string `json:"review_id"`
	Content    string `json:"content"`
}

// CreateTemplate handles POST /api/v1/templates
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req service.TemplateInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	t, err := h.templates.CreateTemplate(r.Context(), req, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, t)
}

// ListTemplates handles GET /api/v1/templates
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.templates.ListTemplates(r.Context(), newQueryParser(r).String("category"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, list)
}

// GetTemplate handles GET /api/v1/templates/{id}
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, t)
}

// UpdateTemplate handles PUT /api/v1/templates/{id}
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req service.TemplateInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	t, err := h.templates.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, t)
}

// RenderTemplate handles POST /api/v1/templates/{id}/render
func (h *TemplateHandler) RenderTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RenderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	id := chi.URLParam(r, "id")
	out, err := h.templates.Render(r.Context(), id, req.ReviewID, req.Overrides)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, RenderResponse{TemplateID: id, ReviewID: req.ReviewID, Content: out})
}
