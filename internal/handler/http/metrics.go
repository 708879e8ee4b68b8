package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/service"
	"github.com/utafrali/ReputationGo/pkg/httputil"
)

// MetricsHandler serves reputation metrics.
type MetricsHandler struct {
	metrics *service.MetricsService
	logger  *slog.Logger
	now     func() time.Time
}

// NewMetricsHandler creates a new metrics HTTP handler.
func NewMetricsHandler(metrics *service.MetricsService, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetMetrics handles GET /api/v1/metrics. Without start the period's default
// window ending at end (or now) is used.
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	period := domain.PeriodMonthly
	if v := p.String("period"); v != nil {
		period = *v
	}
	start, end := p.Time("start"), p.Time("end")
	if err := p.Err(); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	until := h.now()
	if end != nil {
		until = *end
	}

	var (
		m   *domain.ReputationMetrics
		err error
	)
	if start != nil {
		m, err = h.metrics.Generate(r.Context(), period, *start, until)
	} else {
		m, err = h.metrics.GenerateForPeriod(r.Context(), period, until)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, m)
}

// GetSummary handles GET /api/v1/metrics/summary
func (h *MetricsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.metrics.Summary(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, sum)
}
