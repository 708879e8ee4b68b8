package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/repository"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

const maxVersionRetries = 5

// CreateResponseInput holds the fields for answering a review.
type CreateResponseInput struct {
	ReviewID   string  `json:"-"`
	Content    string  `json:"content" validate:"required,max=5000"`
	Status     string  `json:"status" validate:"required,oneof=draft published rejected"`
	Author     string  `json:"author,omitempty"`
	TemplateID *string `json:"template_id,omitempty"`
}

// ResponseService implements the response workflow engine.
type ResponseService struct {
	reviews   repository.ReviewRepository
	responses repository.ResponseRepository
	templates repository.TemplateRepository
	events    EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewResponseService creates a new response service.
func NewResponseService(
	reviews repository.ReviewRepository,
	responses repository.ResponseRepository,
	templates repository.TemplateRepository,
	events EventPublisher,
	logger *slog.Logger,
) *ResponseService {
	return &ResponseService{
		reviews:   reviews,
		responses: responses,
		templates: templates,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateResponse records a response to a review. A published response is
// stored before the review is marked responded; a draft or rejected one
// leaves the review untouched. A review holds at most one published
// response, so a second publish fails with a conflict.
func (s *ResponseService) CreateResponse(ctx context.Context, in CreateResponseInput) (*domain.ReviewResponse, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.Author = strings.TrimSpace(in.Author)
	fields := make(map[string]string)
	if in.Content == "" {
		fields["content"] = "is required"
	}
	if in.Author == "" {
		fields["author"] = "is required"
	}
	if !domain.IsValidResponseStatus(in.Status) {
		fields["status"] = "must be one of " + strings.Join(domain.ValidResponseStatuses(), ", ")
	}
	if len(fields) > 0 {
		return nil, apperrors.InvalidFields("invalid response", fields)
	}

	review, err := s.reviews.GetByID(ctx, in.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}
	if in.TemplateID != nil {
		if _, err := s.templates.GetByID(ctx, *in.TemplateID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.InvalidFields("invalid response", map[string]string{"template_id": "unknown template"})
			}
			return nil, fmt.Errorf("create response: %w", err)
		}
	}

	published := in.Status == domain.ResponseStatusPublished
	if published {
		if err := s.ensureUnpublished(ctx, review); err != nil {
			return nil, err
		}
	}

	now := s.now()
	resp := &domain.ReviewResponse{
		ID:         uuid.New().String(),
		ReviewID:   review.ID,
		TemplateID: in.TemplateID,
		Content:    in.Content,
		Status:     in.Status,
		Author:     in.Author,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if published {
		resp.PublishedAt = &now
	}

	if err := s.responses.Create(ctx, resp); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			publishConflicts.Inc()
		}
		return nil, fmt.Errorf("create response: %w", err)
	}
	responsesCreated.WithLabelValues(resp.Status).Inc()

	if resp.TemplateID != nil {
		success := 0
		if published {
			success = 1
		}
		s.recordTemplateUsage(ctx, *resp.TemplateID, 1, success)
	}

	if published {
		if err := s.markResponded(ctx, review.ID, resp); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "review response created",
		slog.String("response_id", resp.ID),
		slog.String("review_id", resp.ReviewID),
		slog.String("status", resp.Status),
	)
	return resp, nil
}

// PublishResponse moves a draft to published and marks its review responded.
func (s *ResponseService) PublishResponse(ctx context.Context, responseID string) (*domain.ReviewResponse, error) {
	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("publish response: %w", err)
	}
	if !domain.CanTransition(resp.Status, domain.ResponseStatusPublished) {
		return nil, apperrors.Conflict("review response is already " + resp.Status)
	}
	review, err := s.reviews.GetByID(ctx, resp.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("publish response: %w", err)
	}
	if err := s.ensureUnpublished(ctx, review); err != nil {
		return nil, err
	}

	now := s.now()
	resp.Status = domain.ResponseStatusPublished
	resp.UpdatedAt = now
	resp.PublishedAt = &now
	if err := s.responses.Transition(ctx, resp, domain.ResponseStatusDraft); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			publishConflicts.Inc()
		}
		return nil, fmt.Errorf("publish response: %w", err)
	}
	responsesCreated.WithLabelValues(domain.ResponseStatusPublished).Inc()

	if resp.TemplateID != nil {
		s.recordTemplateUsage(ctx, *resp.TemplateID, 0, 1)
	}
	if err := s.markResponded(ctx, review.ID, resp); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review response published",
		slog.String("response_id", resp.ID),
		slog.String("review_id", resp.ReviewID),
	)
	return resp, nil
}

// RejectResponse moves a draft to rejected.
func (s *ResponseService) RejectResponse(ctx context.Context, responseID string) (*domain.ReviewResponse, error) {
	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("reject response: %w", err)
	}
	if !domain.CanTransition(resp.Status, domain.ResponseStatusRejected) {
		return nil, apperrors.Conflict("review response is already " + resp.Status)
	}

	resp.Status = domain.ResponseStatusRejected
	resp.UpdatedAt = s.now()
	if err := s.responses.Transition(ctx, resp, domain.ResponseStatusDraft); err != nil {
		return nil, fmt.Errorf("reject response: %w", err)
	}
	responsesCreated.WithLabelValues(domain.ResponseStatusRejected).Inc()

	s.logger.InfoContext(ctx, "review response rejected",
		slog.String("response_id", resp.ID),
		slog.String("review_id", resp.ReviewID),
	)
	return resp, nil
}

// ListResponses returns the responses of a review, oldest first.
func (s *ResponseService) ListResponses(ctx context.Context, reviewID string) ([]domain.ReviewResponse, error) {
	if _, err := s.reviews.GetByID(ctx, reviewID); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	responses, err := s.responses.ListByReview(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return responses, nil
}

func (s *ResponseService) ensureUnpublished(ctx context.Context, review *domain.Review) error {
	existing, err := s.responses.ListByReview(ctx, review.ID)
	if err != nil {
		return fmt.Errorf("check published responses: %w", err)
	}
	for i := range existing {
		if existing[i].Status != domain.ResponseStatusPublished {
			continue
		}
		// An earlier publish may have stored the response but failed to
		// update the review; finish that update before reporting.
		if review.Status != domain.ReviewStatusResponded || review.Response == nil {
			if err := s.markResponded(ctx, review.ID, &existing[i]); err != nil {
				s.logger.ErrorContext(ctx, "failed to reconcile responded review",
					slog.String("review_id", review.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		publishConflicts.Inc()
		return apperrors.Conflict("review " + review.ID + " already has a published response")
	}
	return nil
}

// markResponded copies the published response onto the review, retrying on
// version conflicts with a fresh read.
func (s *ResponseService) markResponded(ctx context.Context, reviewID string, resp *domain.ReviewResponse) error {
	for attempt := 1; ; attempt++ {
		review, err := s.reviews.GetByID(ctx, reviewID)
		if err != nil {
			return fmt.Errorf("mark review responded: %w", err)
		}

		review.Response = &domain.PublishedReply{
			Content:     resp.Content,
			PublishedAt: *resp.PublishedAt,
			Author:      resp.Author,
		}
		review.Status = domain.DeriveStatus(review, []domain.ReviewResponse{*resp})
		review.UpdatedAt = s.now()

		err = s.reviews.UpdateWithVersion(ctx, review, review.Version)
		if err == nil {
			if err := s.events.PublishReviewResponded(ctx, review, resp); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish review.responded event",
					slog.String("review_id", review.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxVersionRetries {
			return fmt.Errorf("mark review responded: %w", err)
		}
		s.logger.DebugContext(ctx, "review version conflict, retrying",
			slog.String("review_id", reviewID),
			slog.Int("attempt", attempt),
		)
	}
}

func (s *ResponseService) recordTemplateUsage(ctx context.Context, templateID string, usage, success int) {
	if err := s.templates.RecordUsage(ctx, templateID, usage, success); err != nil {
		s.logger.ErrorContext(ctx, "failed to record template usage",
			slog.String("template_id", templateID),
			slog.String("error", err.Error()),
		)
	}
}
