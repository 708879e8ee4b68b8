package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/ReputationGo/internal/domain"
	pkgkafka "github.com/utafrali/ReputationGo/pkg/kafka"
)

// Event types. The topic is the configured prefix, a dot and the type.
const (
	TypeReviewsIngested     = "review.ingested"
	TypeReviewResponded     = "review.responded"
	TypeSourceSynced        = "source.synced"
	TypeSourceSyncFailed    = "source.sync_failed"
	TypeCompetitorRefreshed = "competitor.refreshed"
)

// Aggregate types.
const (
	AggregateTypeSource     = "review_source"
	AggregateTypeReview     = "review"
	AggregateTypeCompetitor = "competitor"
)

// SourceReputationService identifies events originating from this service.
const SourceReputationService = "reputation-service"

// ReviewsIngestedData is the payload for a review.ingested event.
type ReviewsIngestedData struct {
	SourceID string `json:"source_id"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
}

// ReviewRespondedData is the payload for a review.responded event.
type ReviewRespondedData struct {
	ReviewID    string    `json:"review_id"`
	SourceID    string    `json:"source_id"`
	ResponseID  string    `json:"response_id"`
	TemplateID  *string   `json:"template_id,omitempty"`
	Rating      int       `json:"rating"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
}

// SourceSyncedData is the payload for a source.synced event.
type SourceSyncedData struct {
	SourceID string    `json:"source_id"`
	Name     string    `json:"name"`
	Platform string    `json:"platform"`
	Fetched  int       `json:"fetched"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	SyncedAt time.Time `json:"synced_at"`
}

// SourceSyncFailedData is the payload for a source.sync_failed event.
type SourceSyncFailedData struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// CompetitorRefreshedData is the payload for a competitor.refreshed event.
type CompetitorRefreshedData struct {
	CompetitorID  string    `json:"competitor_id"`
	Name          string    `json:"name"`
	AverageRating float64   `json:"average_rating"`
	TotalReviews  int       `json:"total_reviews"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Producer publishes reputation domain events to Kafka. A Producer without
// a Kafka client drops events.
type Producer struct {
	kafka  *pkgkafka.Producer
	prefix string
	logger *slog.Logger
}

// NewProducer creates a new event producer. kafka may be nil.
func NewProducer(kafka *pkgkafka.Producer, topicPrefix string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		prefix: topicPrefix,
		logger: logger,
	}
}

// Topic returns the topic an event type is published to.
func (p *Producer) Topic(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// PublishReviewsIngested publishes a review.ingested event.
func (p *Producer) PublishReviewsIngested(ctx context.Context, sourceID string, created, updated int) error {
	data := ReviewsIngestedData{SourceID: sourceID, Created: created, Updated: updated}
	return p.publish(ctx, TypeReviewsIngested, AggregateTypeSource, sourceID, data)
}

// PublishReviewResponded publishes a review.responded event.
func (p *Producer) PublishReviewResponded(ctx context.Context, review *domain.Review, resp *domain.ReviewResponse) error {
	data := ReviewRespondedData{
		ReviewID:   review.ID,
		SourceID:   review.SourceID,
		ResponseID: resp.ID,
		TemplateID: resp.TemplateID,
		Rating:     review.Rating,
		Author:     resp.Author,
	}
	if resp.PublishedAt != nil {
		data.PublishedAt = *resp.PublishedAt
	}
	return p.publish(ctx, TypeReviewResponded, AggregateTypeReview, review.ID, data)
}

// PublishSourceSynced publishes a source.synced event.
func (p *Producer) PublishSourceSynced(ctx context.Context, source *domain.ReviewSource, fetched, created, updated int) error {
	data := SourceSyncedData{
		SourceID: source.ID,
		Name:     source.Name,
		Platform: source.Platform,
		Fetched:  fetched,
		Created:  created,
		Updated:  updated,
	}
	if source.LastSyncTime != nil {
		data.SyncedAt = *source.LastSyncTime
	}
	return p.publish(ctx, TypeSourceSynced, AggregateTypeSource, source.ID, data)
}

// PublishSourceSyncFailed publishes a source.sync_failed event.
func (p *Producer) PublishSourceSyncFailed(ctx context.Context, source *domain.ReviewSource, syncErr error) error {
	data := SourceSyncFailedData{SourceID: source.ID, Name: source.Name, Error: syncErr.Error()}
	return p.publish(ctx, TypeSourceSyncFailed, AggregateTypeSource, source.ID, data)
}

// PublishCompetitorRefreshed publishes a competitor.refreshed event.
func (p *Producer) PublishCompetitorRefreshed(ctx context.Context, c *domain.Competitor) error {
	data := CompetitorRefreshedData{CompetitorID: c.ID, Name: c.Name}
	if c.AverageRating != nil {
		data.AverageRating = *c.AverageRating
	}
	if c.TotalReviews != nil {
		data.TotalReviews = *c.TotalReviews
	}
	if c.LastUpdated != nil {
		data.LastUpdated = *c.LastUpdated
	}
	return p.publish(ctx, TypeCompetitorRefreshed, AggregateTypeCompetitor, c.ID, data)
}

func (p *Producer) publish(ctx context.Context, eventType, aggregateType, aggregateID string, data any) error {
	if p.kafka == nil {
		p.logger.DebugContext(ctx, "event dropped, kafka disabled",
			slog.String("event_type", eventType),
			slog.String("aggregate_id", aggregateID),
		)
		return nil
	}

	evt, err := pkgkafka.NewEvent(eventType, aggregateType, aggregateID, SourceReputationService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if err := p.kafka.Publish(ctx, p.Topic(eventType), evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}
