package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/repository"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
	"github.com/utafrali/ReputationGo/pkg/pagination"
	"github.com/utafrali/ReputationGo/pkg/validator"
)

// IngestResult counts what an ingest call did with its batch.
type IngestResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ReviewService implements the review store and filter engine.
type ReviewService struct {
	reviews repository.ReviewRepository
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(reviews repository.ReviewRepository, events EventPublisher, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		reviews: reviews,
		events:  events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ingest upserts a provider batch keyed by (sourceID, ExternalID). Entries
// that fail validation are skipped and counted. Delivering the same batch
// twice leaves one stored review per external ID.
func (s *ReviewService) Ingest(ctx context.Context, sourceID string, batch []domain.ExternalReview) (IngestResult, error) {
	var res IngestResult
	if sourceID == "" {
		return res, apperrors.InvalidInput("source id is required")
	}

	for i := range batch {
		in := &batch[i]
		if err := validator.Validate(in); err != nil {
			res.Skipped++
			s.logger.WarnContext(ctx, "skipping invalid review",
				slog.String("source_id", sourceID),
				slog.String("external_id", in.ExternalID),
				slog.String("error", err.Error()),
			)
			continue
		}

		now := s.now()
		rev := &domain.Review{
			ID:          uuid.New().String(),
			SourceID:    sourceID,
			ExternalID:  in.ExternalID,
			AuthorName:  strings.TrimSpace(in.AuthorName),
			Rating:      in.Rating,
			Content:     in.Content,
			PublishedAt: in.PublishedAt.UTC(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if in.Sentiment != nil {
			sent := *in.Sentiment
			rev.Sentiment = &sent
		}
		rev.Status = domain.DeriveStatus(rev, nil)

		created, err := s.reviews.Upsert(ctx, rev)
		if err != nil {
			return res, fmt.Errorf("ingest review %s: %w", in.ExternalID, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	reviewsIngested.WithLabelValues("created").Add(float64(res.Created))
	reviewsIngested.WithLabelValues("updated").Add(float64(res.Updated))
	reviewsIngested.WithLabelValues("skipped").Add(float64(res.Skipped))

	if res.Created+res.Updated > 0 {
		if err := s.events.PublishReviewsIngested(ctx, sourceID, res.Created, res.Updated); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish review.ingested event",
				slog.String("source_id", sourceID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "reviews ingested",
		slog.String("source_id", sourceID),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Query returns one page of reviews matching every set filter, newest first.
func (s *ReviewService) Query(ctx context.Context, filter repository.ReviewFilter) (pagination.Result[domain.Review], error) {
	if err := validateFilter(filter); err != nil {
		return pagination.Result[domain.Review]{}, err
	}
	p := pagination.New(filter.Page, filter.PerPage)
	filter.Page, filter.PerPage = p.Page, p.PerPage

	reviews, total, err := s.reviews.Query(ctx, filter)
	if err != nil {
		return pagination.Result[domain.Review]{}, fmt.Errorf("query reviews: %w", err)
	}
	return pagination.NewResult(reviews, total, p), nil
}

// GetReview retrieves a review by ID.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	rev, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rev, nil
}

func validateFilter(f repository.ReviewFilter) error {
	fields := make(map[string]string)
	if f.MinRating != nil && (*f.MinRating < 1 || *f.MinRating > 5) {
		fields["min_rating"] = "must be between 1 and 5"
	}
	if f.MaxRating != nil && (*f.MaxRating < 1 || *f.MaxRating > 5) {
		fields["max_rating"] = "must be between 1 and 5"
	}
	if f.MinRating != nil && f.MaxRating != nil && *f.MinRating > *f.MaxRating {
		fields["min_rating"] = "must not exceed max_rating"
	}
	if f.Status != nil && !domain.IsValidReviewStatus(*f.Status) {
		fields["status"] = "must be one of " + strings.Join(domain.ValidReviewStatuses(), ", ")
	}
	if f.Sentiment != nil && !domain.IsValidSentimentBucket(*f.Sentiment) {
		fields["sentiment"] = "must be one of " + strings.Join(domain.ValidSentimentBuckets(), ", ")
	}
	if len(fields) > 0 {
		return apperrors.InvalidFields("invalid review filter", fields)
	}
	return nil
}
