package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/ReputationGo/internal/config"
	"github.com/utafrali/ReputationGo/internal/event"
	handler "github.com/utafrali/ReputationGo/internal/handler/http"
	"github.com/utafrali/ReputationGo/internal/provider"
	"github.com/utafrali/ReputationGo/internal/provider/mock"
	"github.com/utafrali/ReputationGo/internal/provider/web"
	"github.com/utafrali/ReputationGo/internal/repository"
	"github.com/utafrali/ReputationGo/internal/repository/memory"
	"github.com/utafrali/ReputationGo/internal/repository/postgres"
	redisrepo "github.com/utafrali/ReputationGo/internal/repository/redis"
	"github.com/utafrali/ReputationGo/internal/service"
	"github.com/utafrali/ReputationGo/pkg/database"
	"github.com/utafrali/ReputationGo/pkg/health"
	"github.com/utafrali/ReputationGo/pkg/httpclient"
	pkgkafka "github.com/utafrali/ReputationGo/pkg/kafka"
	"github.com/utafrali/ReputationGo/pkg/tracing"
)

// App wires together all dependencies and runs the reputation service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	rdb        *redis.Client
	producer   *pkgkafka.Producer
	scheduler  *service.Scheduler
	tracerStop func(context.Context) error
	httpServer *http.Server
}

type stores struct {
	sources     repository.SourceRepository
	reviews     repository.ReviewRepository
	responses   repository.ResponseRepository
	templates   repository.TemplateRepository
	competitors repository.CompetitorRepository
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	tracerStop, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.OTELEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracerStop = tracerStop
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)

	healthHandler := health.NewHandler()

	st, err := a.openStores(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Cross-instance sync lock.
	var locker repository.Locker = memory.NewLocker()
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		locker = redisrepo.NewLocker(rdb)
		healthHandler.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, sync locks are process-local")
	}

	// Kafka is optional; without brokers domain events are dropped.
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		}, logger)
		healthHandler.Register("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	events := event.NewProducer(a.producer, cfg.KafkaTopic, logger)

	prov := a.newProvider()

	// Build the dependency graph.
	reviewService := service.NewReviewService(st.reviews, events, logger)
	syncService := service.NewSyncService(
		st.sources, reviewService, prov, locker, events, logger,
		time.Duration(cfg.SyncLockTTLSecs)*time.Second,
	)
	svc := handler.Services{
		Sources:     service.NewSourceService(st.sources, logger),
		Reviews:     reviewService,
		Responses:   service.NewResponseService(st.reviews, st.responses, st.templates, events, logger),
		Templates:   service.NewTemplateService(st.templates, st.reviews, st.sources, logger),
		Metrics:     service.NewMetricsService(st.reviews, logger),
		Competitors: service.NewCompetitorService(st.competitors, st.reviews, prov, events, logger),
		Sync:        syncService,
	}

	if cfg.SyncEnabled {
		a.scheduler, err = service.NewScheduler(cfg.SyncSchedule, syncService, logger)
		if err != nil {
			return nil, err
		}
	}

	router := handler.NewRouter(svc, healthHandler, handler.RouterConfig{
		ServiceName:    cfg.ServiceName,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ok = true
	return a, nil
}

// openStores selects the storage backend.
func (a *App) openStores(ctx context.Context, hh *health.Handler) (*stores, error) {
	if a.cfg.StorageBackend == config.StorageMemory {
		a.logger.Warn("using in-memory storage, data is lost on restart")
		return &stores{
			sources:     memory.NewSourceRepository(),
			reviews:     memory.NewReviewRepository(),
			responses:   memory.NewResponseRepository(),
			templates:   memory.NewTemplateRepository(),
			competitors: memory.NewCompetitorRepository(),
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:             a.cfg.PostgresDSN(),
		MaxConns:        a.cfg.DBMaxConns,
		MinConns:        a.cfg.DBMinConns,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectAttempts: 5,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)

	if err := postgres.Migrate(ctx, pool, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, a.cfg.ServiceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	hh.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	var sealer *postgres.Sealer
	if a.cfg.CredentialsKey != "" {
		key, err := a.cfg.CredentialsKeyBytes()
		if err != nil {
			return nil, err
		}
		sealer = postgres.NewSealer(key)
	} else {
		a.logger.Warn("CREDENTIALS_KEY not set, source credentials are stored unencrypted")
	}

	return &stores{
		sources:     postgres.NewSourceRepository(pool, sealer),
		reviews:     postgres.NewReviewRepository(pool),
		responses:   postgres.NewResponseRepository(pool),
		templates:   postgres.NewTemplateRepository(pool),
		competitors: postgres.NewCompetitorRepository(pool),
	}, nil
}

func (a *App) newProvider() provider.Provider {
	if a.cfg.Provider == config.ProviderMock {
		a.logger.Info("using mock review provider")
		return mock.New()
	}

	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = time.Duration(a.cfg.ProviderTimeoutSec) * time.Second
	clientCfg.RequestsPerSecond = a.cfg.ProviderRPS
	client := httpclient.NewBreakerClient(
		httpclient.New(clientCfg),
		httpclient.DefaultBreakerConfig("review-provider"),
		a.logger,
	)
	a.logger.Info("using web review provider",
		slog.Float64("requests_per_second", a.cfg.ProviderRPS),
	)
	return web.New(client, a.logger)
}

// Run starts the HTTP server and the sync scheduler and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	if err := a.Shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if a.scheduler != nil {
		a.scheduler.Stop(shutdownCtx)
	}
	if a.tracerStop != nil {
		if err := a.tracerStop(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
	a.closeResources()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
