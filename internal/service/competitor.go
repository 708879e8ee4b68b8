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
	"github.com/utafrali/ReputationGo/internal/provider"
	"github.com/utafrali/ReputationGo/internal/repository"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

// AddCompetitorInput holds the fields for tracking a competitor.
type AddCompetitorInput struct {
	Name    string                    `json:"name" validate:"required,max=200"`
	Sources []domain.CompetitorSource `json:"sources"`
}

// CompetitorService implements the competitor comparison engine.
type CompetitorService struct {
	competitors repository.CompetitorRepository
	reviews     repository.ReviewRepository
	provider    provider.Provider
	events      EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewCompetitorService creates a new competitor service.
func NewCompetitorService(
	competitors repository.CompetitorRepository,
	reviews repository.ReviewRepository,
	p provider.Provider,
	events EventPublisher,
	logger *slog.Logger,
) *CompetitorService {
	return &CompetitorService{
		competitors: competitors,
		reviews:     reviews,
		provider:    p,
		events:      events,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AddCompetitor stores a competitor. Sources with an empty URL are dropped;
// at least one must remain. Derived stats stay unset until the first
// refresh.
func (s *CompetitorService) AddCompetitor(ctx context.Context, in AddCompetitorInput) (*domain.Competitor, error) {
	c := &domain.Competitor{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(in.Name),
		Sources:   make([]domain.CompetitorSource, 0, len(in.Sources)),
		CreatedAt: s.now(),
	}

	fields := make(map[string]string)
	for _, src := range in.Sources {
		src.URL = strings.TrimSpace(src.URL)
		if src.URL == "" {
			continue
		}
		src.SourceType = strings.ToLower(strings.TrimSpace(src.SourceType))
		if src.SourceType == "" {
			src.SourceType = domain.PlatformOther
		}
		if !domain.IsValidPlatform(src.SourceType) {
			fields["sources"] = "source_type must be one of " + strings.Join(domain.ValidPlatforms(), ", ")
		}
		src.Name = strings.TrimSpace(src.Name)
		c.Sources = append(c.Sources, src)
	}
	if c.Name == "" {
		fields["name"] = "is required"
	}
	if len(c.Sources) == 0 {
		fields["sources"] = "at least one source with a url is required"
	}
	if len(fields) > 0 {
		return nil, apperrors.InvalidFields("invalid competitor", fields)
	}

	if err := s.competitors.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("add competitor: %w", err)
	}
	s.logger.InfoContext(ctx, "competitor added",
		slog.String("competitor_id", c.ID),
		slog.Int("sources", len(c.Sources)),
	)
	return c, nil
}

// RefreshCompetitor pulls stats for every tracked source and stores the
// review-count weighted average. Any provider failure aborts the refresh and
// leaves the stored stats untouched.
func (s *CompetitorService) RefreshCompetitor(ctx context.Context, id string) (*domain.Competitor, error) {
	c, err := s.competitors.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("refresh competitor: %w", err)
	}

	collected := make([]domain.CompetitorStats, 0, len(c.Sources))
	for _, src := range c.Sources {
		st, err := s.provider.FetchCompetitorStats(ctx, src)
		if err != nil {
			if !errors.Is(err, apperrors.ErrProvider) {
				err = apperrors.ProviderFailure(s.provider.Name(), err)
			}
			s.logger.WarnContext(ctx, "competitor refresh failed",
				slog.String("competitor_id", c.ID),
				slog.String("url", src.URL),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("refresh competitor: %w", err)
		}
		collected = append(collected, st)
	}

	stats := combineStats(collected)
	now := s.now()
	if err := s.competitors.UpdateStats(ctx, c.ID, stats, now); err != nil {
		return nil, fmt.Errorf("refresh competitor: %w", err)
	}
	c.AverageRating = &stats.AverageRating
	c.TotalReviews = &stats.TotalReviews
	c.LastUpdated = &now

	if err := s.events.PublishCompetitorRefreshed(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish competitor.refreshed event",
			slog.String("competitor_id", c.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "competitor refreshed",
		slog.String("competitor_id", c.ID),
		slog.Float64("average_rating", stats.AverageRating),
		slog.Int("total_reviews", stats.TotalReviews),
	)
	return c, nil
}

// DeleteCompetitor stops tracking a competitor.
func (s *CompetitorService) DeleteCompetitor(ctx context.Context, id string) error {
	if err := s.competitors.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete competitor: %w", err)
	}
	s.logger.InfoContext(ctx, "competitor deleted", slog.String("competitor_id", id))
	return nil
}

// GetCompetitor retrieves a competitor by ID.
func (s *CompetitorService) GetCompetitor(ctx context.Context, id string) (*domain.Competitor, error) {
	c, err := s.competitors.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get competitor: %w", err)
	}
	return c, nil
}

// ListCompetitors returns competitors ordered by name.
func (s *CompetitorService) ListCompetitors(ctx context.Context) ([]domain.Competitor, error) {
	list, err := s.competitors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	return list, nil
}

// Compare sets the competitor's stats against the business's all-time
// rating and review volume.
func (s *CompetitorService) Compare(ctx context.Context, id string) (*domain.Comparison, error) {
	c, err := s.competitors.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("compare competitor: %w", err)
	}
	own, err := s.reviews.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("compare competitor: %w", err)
	}

	var volume *float64
	if c.TotalReviews != nil {
		v := float64(*c.TotalReviews)
		volume = &v
	}
	return &domain.Comparison{
		CompetitorID:   c.ID,
		CompetitorName: c.Name,
		Rating:         domain.Compare(own.AverageRating, c.AverageRating),
		Volume:         domain.Compare(float64(own.TotalReviews), volume),
		LastUpdated:    c.LastUpdated,
	}, nil
}

// combineStats weights each source's average by its review count. When no
// source reports any reviews the plain mean of the averages is used.
func combineStats(all []domain.CompetitorStats) domain.CompetitorStats {
	var (
		out      domain.CompetitorStats
		weighted float64
		plain    float64
	)
	for _, st := range all {
		out.TotalReviews += st.TotalReviews
		weighted += st.AverageRating * float64(st.TotalReviews)
		plain += st.AverageRating
	}
	switch {
	case out.TotalReviews > 0:
		out.AverageRating = weighted / float64(out.TotalReviews)
	case len(all) > 0:
		out.AverageRating = plain / float64(len(all))
	}
	return out
}
