// Package service holds the reputation engines: source registry and sync,
// review store, response workflow, templates, metrics and competitors.
package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/ReputationGo/internal/domain"
)

// EventPublisher emits domain events. Publish failures are logged by the
// caller and never fail the operation that produced the event.
type EventPublisher interface {
	PublishReviewsIngested(ctx context.Context, sourceID string, created, updated int) error
	PublishReviewResponded(ctx context.Context, review *domain.Review, resp *domain.ReviewResponse) error
	PublishSourceSynced(ctx context.Context, source *domain.ReviewSource, fetched, created, updated int) error
	PublishSourceSyncFailed(ctx context.Context, source *domain.ReviewSource, syncErr error) error
	PublishCompetitorRefreshed(ctx context.Context, c *domain.Competitor) error
}

var (
	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_source_sync_total",
			Help: "Source sync attempts by result.",
		},
		[]string{"platform", "result"},
	)
	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reputation_source_sync_duration_seconds",
			Help:    "Duration of source syncs including ingestion.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform"},
	)
	reviewsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_reviews_ingested_total",
			Help: "Reviews processed by ingestion, by outcome.",
		},
		[]string{"outcome"},
	)
	responsesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_responses_total",
			Help: "Review responses by resulting status.",
		},
		[]string{"status"},
	)
	publishConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reputation_publish_conflicts_total",
			Help: "Publish attempts rejected because the review already has a published response.",
		},
	)
)

func init() {
	prometheus.MustRegister(syncRuns, syncDuration, reviewsIngested, responsesCreated, publishConflicts)
}
