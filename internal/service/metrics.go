package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/repository"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

const (
	day             = 24 * time.Hour
	maxTrendBuckets = 2000
)

// MetricsService implements the metrics aggregation engine. Metrics are
// recomputed from the review store on every call and never persisted.
type MetricsService struct {
	reviews repository.ReviewRepository
	logger  *slog.Logger
}

// NewMetricsService creates a new metrics service.
func NewMetricsService(reviews repository.ReviewRepository, logger *slog.Logger) *MetricsService {
	return &MetricsService{reviews: reviews, logger: logger}
}

// Generate computes metrics over reviews published in [start, end]. The
// result depends only on the stored reviews and the arguments.
func (s *MetricsService) Generate(ctx context.Context, period string, start, end time.Time) (*domain.ReputationMetrics, error) {
	start, end = start.UTC(), end.UTC()
	if err := validateWindow(period, start, end); err != nil {
		return nil, err
	}

	reviews, err := s.reviews.ListInWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("generate metrics: %w", err)
	}

	m := Aggregate(period, start, end, reviews)
	s.logger.DebugContext(ctx, "metrics generated",
		slog.String("period", period),
		slog.Int("total_reviews", m.TotalReviews),
	)
	return m, nil
}

// GenerateForPeriod computes metrics for the period's default window ending
// at end: 1, 7, 30 or 365 days.
func (s *MetricsService) GenerateForPeriod(ctx context.Context, period string, end time.Time) (*domain.ReputationMetrics, error) {
	days := domain.PeriodDays(period)
	if days == 0 {
		return nil, invalidPeriod()
	}
	return s.Generate(ctx, period, end.AddDate(0, 0, -days), end)
}

// Summary returns the all-time average rating and review count.
func (s *MetricsService) Summary(ctx context.Context) (domain.ReviewSummary, error) {
	sum, err := s.reviews.Summary(ctx)
	if err != nil {
		return domain.ReviewSummary{}, fmt.Errorf("summarize reviews: %w", err)
	}
	return sum, nil
}

// Aggregate is the pure metrics computation. Reviews outside [start, end]
// are ignored, so any superset of the window may be passed in.
func Aggregate(period string, start, end time.Time, reviews []domain.Review) *domain.ReputationMetrics {
	inWindow := make([]domain.Review, 0, len(reviews))
	for _, r := range reviews {
		if !r.PublishedAt.Before(start) && !r.PublishedAt.After(end) {
			inWindow = append(inWindow, r)
		}
	}
	sort.Slice(inWindow, func(i, j int) bool {
		a, b := inWindow[i], inWindow[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.ID < b.ID
	})

	m := &domain.ReputationMetrics{
		Period:          period,
		WindowStart:     start,
		WindowEnd:       end,
		ReviewsByRating: domain.EmptyHistogram(),
	}

	var (
		ratingSum    int
		responded    int
		sentimentSum float64
		sentimentN   int
	)
	for i := range inWindow {
		r := &inWindow[i]
		ratingSum += r.Rating
		m.ReviewsByRating[min(max(r.Rating, 1), 5)]++
		if r.HasResponse() {
			responded++
		}
		if r.Sentiment != nil {
			sentimentSum += r.Sentiment.Score
			sentimentN++
		}
		if domain.DeriveStatus(r, nil) == domain.ReviewStatusFlagged {
			m.NeedsAttention++
		}
	}

	m.TotalReviews = len(inWindow)
	if m.TotalReviews > 0 {
		m.AverageRating = float64(ratingSum) / float64(m.TotalReviews)
		m.ResponseRate = float64(responded) / float64(m.TotalReviews)
	}
	if sentimentN > 0 {
		m.SentimentScore = sentimentSum / float64(sentimentN)
	}

	m.RatingTrend, m.VolumeTrend = trends(period, start, end, inWindow)
	m.TopKeywords = topKeywords(inWindow, domain.TopKeywordLimit)
	return m
}

// bucketStarts slices [start, end] into day buckets, or calendar-month
// buckets for the yearly period. Each bucket runs up to the next start.
func bucketStarts(period string, start, end time.Time) []time.Time {
	var starts []time.Time
	for i := 0; ; i++ {
		var t time.Time
		if period == domain.PeriodYearly {
			t = addMonthsClamped(start, i)
		} else {
			t = start.Add(time.Duration(i) * day)
		}
		if t.After(end) {
			break
		}
		starts = append(starts, t)
	}
	return starts
}

// addMonthsClamped moves t forward n calendar months, keeping its day of
// month where the target month has it and using the last day otherwise.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	lastDay := time.Date(y, m+time.Month(n)+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return time.Date(y, m+time.Month(n), min(d, lastDay), hh, mm, ss, t.Nanosecond(), t.Location())
}

// trends emits one point per bucket even when it is empty. An empty bucket
// repeats the previous rating value and has volume 0.
func trends(period string, start, end time.Time, reviews []domain.Review) ([]domain.TrendPoint, []domain.TrendPoint) {
	starts := bucketStarts(period, start, end)
	counts := make([]int, len(starts))
	sums := make([]int, len(starts))

	for i := range reviews {
		// Index of the last bucket starting at or before the review.
		idx := sort.Search(len(starts), func(k int) bool {
			return starts[k].After(reviews[i].PublishedAt)
		}) - 1
		if idx < 0 {
			continue
		}
		counts[idx]++
		sums[idx] += reviews[i].Rating
	}

	rating := make([]domain.TrendPoint, len(starts))
	volume := make([]domain.TrendPoint, len(starts))
	var prev float64
	for i, ts := range starts {
		if counts[i] > 0 {
			prev = float64(sums[i]) / float64(counts[i])
		}
		rating[i] = domain.TrendPoint{Timestamp: ts, Value: prev}
		volume[i] = domain.TrendPoint{Timestamp: ts, Value: float64(counts[i])}
	}
	return rating, volume
}

func validateWindow(period string, start, end time.Time) error {
	if !domain.IsValidPeriod(period) {
		return invalidPeriod()
	}
	fields := make(map[string]string)
	if start.IsZero() {
		fields["start"] = "is required"
	}
	if end.IsZero() {
		fields["end"] = "is required"
	}
	if len(fields) == 0 && end.Before(start) {
		fields["end"] = "must not be before start"
	}
	if len(fields) == 0 {
		var buckets float64
		if period == domain.PeriodYearly {
			buckets = end.Sub(start).Hours() / 24 / 28
		} else {
			buckets = end.Sub(start).Hours() / 24
		}
		if buckets > maxTrendBuckets {
			fields["start"] = fmt.Sprintf("window spans more than %d trend buckets", maxTrendBuckets)
		}
	}
	if len(fields) > 0 {
		return apperrors.InvalidFields("invalid metrics window", fields)
	}
	return nil
}

func invalidPeriod() error {
	return apperrors.InvalidFields("invalid metrics window", map[string]string{
		"period": "must be one of " + strings.Join(domain.ValidPeriods(), ", "),
	})
}
