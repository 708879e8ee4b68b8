package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/ReputationGo/internal/service"
	"github.com/utafrali/ReputationGo/pkg/httputil"
	"github.com/utafrali/ReputationGo/pkg/validator"
)

// CompetitorHandler handles HTTP requests for competitor tracking.
type CompetitorHandler struct {
	competitors *service.CompetitorService
	logger      *slog.Logger
}

// NewCompetitorHandler creates a new competitor HTTP handler.
func NewCompetitorHandler(competitors *service.CompetitorService, logger *slog.Logger) *CompetitorHandler {
	return &CompetitorHandler{competitors: competitors, logger: logger}
}

// CreateCompetitor handles POST /api/v1/competitors
func (h *CompetitorHandler) CreateCompetitor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req service.AddCompetitorInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	c, err := h.competitors.AddCompetitor(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, c)
}

// ListCompetitors handles GET /api/v1/competitors
func (h *CompetitorHandler) ListCompetitors(w http.ResponseWriter, r *http.Request) {
	list, err := h.competitors.ListCompetitors(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, list)
}

// GetCompetitor handles GET /api/v1/competitors/{id}
func (h *CompetitorHandler) GetCompetitor(w http.ResponseWriter, r *http.Request) {
	c, err := h.competitors.GetCompetitor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// DeleteCompetitor handles DELETE /api/v1/competitors/{id}
func (h *CompetitorHandler) DeleteCompetitor(w http.ResponseWriter, r *http.Request) {
	if err := h.competitors.DeleteCompetitor(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshCompetitor handles POST /api/v1/competitors/{id}/refresh
func (h *CompetitorHandler) RefreshCompetitor(w http.ResponseWriter, r *http.Request) {
	c, err := h.competitors.RefreshCompetitor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// Compare handles GET /api/v1/competitors/{id}/comparison
func (h *CompetitorHandler) Compare(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.competitors.Compare(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cmp)
}
