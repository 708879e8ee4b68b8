package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/repository"
	"github.com/utafrali/ReputationGo/internal/repository/memory"
	"github.com/utafrali/ReputationGo/pkg/logger"
)

// --- Mock Provider ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "test" }

func (m *mockProvider) FetchReviews(ctx context.Context, source domain.ReviewSource) ([]domain.ExternalReview, error) {
	args := m.Called(ctx, source.ID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExternalReview), args.Error(1)
}

func (m *mockProvider) FetchCompetitorStats(ctx context.Context, target domain.CompetitorSource) (domain.CompetitorStats, error) {
	args := m.Called(ctx, target.URL)
	return args.Get(0).(domain.CompetitorStats), args.Error(1)
}

// --- Recording EventPublisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) record(t string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, t)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *recordingPublisher) PublishReviewsIngested(context.Context, string, int, int) error {
	return p.record("review.ingested")
}

func (p *recordingPublisher) PublishReviewResponded(context.Context, *domain.Review, *domain.ReviewResponse) error {
	return p.record("review.responded")
}

func (p *recordingPublisher) PublishSourceSynced(context.Context, *domain.ReviewSource, int, int, int) error {
	return p.record("source.synced")
}

func (p *recordingPublisher) PublishSourceSyncFailed(context.Context, *domain.ReviewSource, error) error {
	return p.record("source.sync_failed")
}

func (p *recordingPublisher) PublishCompetitorRefreshed(context.Context, *domain.Competitor) error {
	return p.record("competitor.refreshed")
}

// --- Clock ---

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Fixture ---

var baseTime = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock       *testClock
	events      *recordingPublisher
	provider    *mockProvider
	sourceRepo  *memory.SourceRepository
	reviewRepo  *memory.ReviewRepository
	respRepo    *memory.ResponseRepository
	tmplRepo    *memory.TemplateRepository
	compRepo    *memory.CompetitorRepository
	locker      *memory.Locker
	sources     *SourceService
	reviews     *ReviewService
	responses   *ResponseService
	templates   *TemplateService
	metrics     *MetricsService
	competitors *CompetitorService
	sync        *SyncService
}

func newTestLogger() *slog.Logger {
	return logger.Discard()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:      &testClock{now: baseTime},
		events:     &recordingPublisher{},
		provider:   new(mockProvider),
		sourceRepo: memory.NewSourceRepository(),
		reviewRepo: memory.NewReviewRepository(),
		respRepo:   memory.NewResponseRepository(),
		tmplRepo:   memory.NewTemplateRepository(),
		compRepo:   memory.NewCompetitorRepository(),
		locker:     memory.NewLocker(),
	}
	log := newTestLogger()

	f.sources = NewSourceService(f.sourceRepo, log)
	f.sources.now = f.clock.Now
	f.reviews = NewReviewService(f.reviewRepo, f.events, log)
	f.reviews.now = f.clock.Now
	f.responses = NewResponseService(f.reviewRepo, f.respRepo, f.tmplRepo, f.events, log)
	f.responses.now = f.clock.Now
	f.templates = NewTemplateService(f.tmplRepo, f.reviewRepo, f.sourceRepo, log)
	f.templates.now = f.clock.Now
	f.metrics = NewMetricsService(f.reviewRepo, log)
	f.competitors = NewCompetitorService(f.compRepo, f.reviewRepo, f.provider, f.events, log)
	f.competitors.now = f.clock.Now
	f.sync = NewSyncService(f.sourceRepo, f.reviews, f.provider, f.locker, f.events, log, time.Minute)
	f.sync.now = f.clock.Now
	return f
}

func (f *fixture) addSource(t *testing.T, name string) *domain.ReviewSource {
	t.Helper()
	src, err := f.sources.AddSource(context.Background(), CreateSourceInput{
		Name:     name,
		Platform: domain.PlatformGoogle,
		URL:      "https://reviews.example.com/" + name,
	})
	require.NoError(t, err)
	return src
}

func ext(id string, rating int, daysAgo int, content string, score *float64) domain.ExternalReview {
	r := domain.ExternalReview{
		ExternalID:  id,
		AuthorName:  "Author " + id,
		Rating:      rating,
		Content:     content,
		PublishedAt: baseTime.Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
	if score != nil {
		r.Sentiment = &domain.Sentiment{Score: *score, Magnitude: 0.5}
	}
	return r
}

func (f *fixture) ingest(t *testing.T, sourceID string, batch ...domain.ExternalReview) {
	t.Helper()
	_, err := f.reviews.Ingest(context.Background(), sourceID, batch)
	require.NoError(t, err)
}

// reviewByExternal finds a stored review through the filter engine.
func (f *fixture) reviewByExternal(t *testing.T, externalID string) *domain.Review {
	t.Helper()
	res, err := f.reviews.Query(context.Background(), repository.ReviewFilter{PerPage: 100})
	require.NoError(t, err)
	for i := range res.Data {
		if res.Data[i].ExternalID == externalID {
			return &res.Data[i]
		}
	}
	t.Fatalf("review %s not stored", externalID)
	return nil
}

func ptr[T any](v T) *T { return &v }
