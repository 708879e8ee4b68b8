package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/ReputationGo/internal/service"
	"github.com/utafrali/ReputationGo/pkg/health"
	"github.com/utafrali/ReputationGo/pkg/middleware"
)

const maxBodyBytes = 1 << 20

// Services bundles what the router serves.
type Services struct {
	Sources     *service.SourceService
	Reviews     *service.ReviewService
	Responses   *service.ResponseService
	Templates   *service.TemplateService
	Metrics     *service.MetricsService
	Competitors *service.CompetitorService
	Sync        *service.SyncService
}

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	ServiceName    string
	JWTSecret      string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all reputation service routes registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	cors := middleware.DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.AllowedOrigins
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cors))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.Metrics(cfg.ServiceName))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	sources := NewSourceHandler(svc.Sources, svc.Sync, logger)
	reviews := NewReviewHandler(svc.Reviews, svc.Responses, svc.Templates, logger)
	templates := NewTemplateHandler(svc.Templates, logger)
	metrics := NewMetricsHandler(svc.Metrics, logger)
	competitors := NewCompetitorHandler(svc.Competitors, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JWTAuth(middleware.AuthConfig{Secret: cfg.JWTSecret}, logger))
		r.Use(middleware.RequestLogger(logger))

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", sources.ListSources)
			r.Post("/", sources.CreateSource)
			// Static paths must come before /{id}.
			r.Get("/enabled", sources.ListEnabled)
			r.Post("/sync-due", sources.SyncDue)
			r.Get("/{id}", sources.GetSource)
			r.Patch("/{id}", sources.UpdateSource)
			r.Delete("/{id}", sources.DeleteSource)
			r.Post("/{id}/sync", sources.SyncSource)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", reviews.ListReviews)
			r.Get("/{id}", reviews.GetReview)
			r.Get("/{id}/responses", reviews.ListResponses)
			r.Post("/{id}/responses", reviews.CreateResponse)
			r.Get("/{id}/suggested-templates", reviews.SuggestTemplates)
		})

		r.Post("/responses/{id}/publish", reviews.PublishResponse)
		r.Post("/responses/{id}/reject", reviews.RejectResponse)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templates.ListTemplates)
			r.Post("/", templates.CreateTemplate)
			r.Get("/{id}", templates.GetTemplate)
			r.Put("/{id}", templates.UpdateTemplate)
			r.Post("/{id}/render", templates.RenderTemplate)
		})

		r.Get("/metrics", metrics.GetMetrics)
		r.Get("/metrics/summary", metrics.GetSummary)

		r.Route("/competitors", func(r chi.Router) {
			r.Get("/", competitors.ListCompetitors)
			r.Post("/", competitors.CreateCompetitor)
			r.Get("/{id}", competitors.GetCompetitor)
			r.Delete("/{id}", competitors.DeleteCompetitor)
			r.Post("/{id}/refresh", competitors.RefreshCompetitor)
			r.Get("/{id}/comparison", competitors.Compare)
		})
	})

	return r
}
