package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/ReputationGo/internal/repository"
	"github.com/utafrali/ReputationGo/internal/service"
	"github.com/utafrali/ReputationGo/pkg/httputil"
	"github.com/utafrali/ReputationGo/pkg/middleware"
	"github.com/utafrali/ReputationGo/pkg/validator"
)

// ReviewHandler handles HTTP requests for reviews and their responses.
type ReviewHandler struct {
	reviews   *service.ReviewService
	responses *service.ResponseService
	templates *service.TemplateService
	logger    *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(
	reviews *service.ReviewService,
	responses *service.ResponseService,
	templates *service.TemplateService,
	logger *slog.Logger,
) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, responses: responses, templates: templates, logger: logger}
}

// ListReviews handles GET /api/v1/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	filter := repository.ReviewFilter{
		SourceID:    p.String("source_id"),
		MinRating:   p.Int("min_rating"),
		MaxRating:   p.Int("max_rating"),
		Status:      p.String("status"),
		Sentiment:   p.String("sentiment"),
		HasResponse: p.Bool("has_response"),
		Search:      p.String("q"),
		Page:        deref(p.Int("page")),
		PerPage:     deref(p.Int("per_page")),
	}
	if err := p.Err(); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.reviews.Query(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetReview handles GET /api/v1/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	rev, err := h.reviews.GetReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rev)
}

// ListResponses handles GET /api/v1/reviews/{id}/responses
func (h *ReviewHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	list, err := h.responses.ListResponses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, list)
}

// CreateResponse handles POST /api/v1/reviews/{id}/responses. The author
// defaults to the authenticated caller.
func (h *ReviewHandler) CreateResponse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req service.CreateResponseInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	req.ReviewID = chi.URLParam(r, "id")
	if req.Author == "" {
		req.Author = middleware.UserIDFromContext(r.Context())
	}

	resp, err := h.responses.CreateResponse(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, resp)
}

// SuggestTemplates handles GET /api/v1/reviews/{id}/suggested-templates
func (h *ReviewHandler) SuggestTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.templates.SuggestTemplates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, list)
}

// PublishResponse handles POST /api/v1/responses/{id}/publish
func (h *ReviewHandler) PublishResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := h.responses.PublishResponse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, resp)
}

// RejectResponse handles POST /api/v1/responses/{id}/reject
func (h *ReviewHandler) RejectResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := h.responses.RejectResponse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, resp)
}
