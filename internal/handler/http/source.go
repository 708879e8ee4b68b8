package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/ReputationGo/internal/service"
	"github.com/utafrali/ReputationGo/pkg/httputil"
	"github.com/utafrali/ReputationGo/pkg/validator"
)

// SourceHandler handles HTTP requests for the source registry and syncs.
type SourceHandler struct {
	sources *service.SourceService
	sync    *service.SyncService
	logger  *slog.Logger
}

// NewSourceHandler creates a new source HTTP handler.
func NewSourceHandler(sources *service.SourceService, sync *service.SyncService, logger *slog.Logger) *SourceHandler {
	return &SourceHandler{sources: sources, sync: sync, logger: logger}
}

// CreateSource handles POST /api/v1/sources
func (h *SourceHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req service.CreateSourceInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	src, err := h.sources.AddSource(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, src)
}

// ListSources handles GET /api/v1/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListSources(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, sources)
}

// ListEnabled handles GET /api/v1/sources/enabled
func (h *SourceHandler) ListEnabled(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListEnabled(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, sources)
}

// GetSource handles GET /api/v1/sources/{id}
func (h *SourceHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	src, err := h.sources.GetSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, src)
}

// UpdateSource handles PATCH /api/v1/sources/{id}
func (h *SourceHandler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req service.UpdateSourceInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	src, err := h.sources.UpdateSource(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, src)
}

// DeleteSource handles DELETE /api/v1/sources/{id}
func (h *SourceHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := h.sources.DeleteSource(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncSource handles POST /api/v1/sources/{id}/sync
func (h *SourceHandler) SyncSource(w http.ResponseWriter, r *http.Request) {
	res, err := h.sync.SyncSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// SyncDue handles POST /api/v1/sources/sync-due
func (h *SourceHandler) SyncDue(w http.ResponseWriter, r *http.Request) {
	report, err := h.sync.SyncDue(r.Context(), time.Now().UTC())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, report)
}
