package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/repository"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
	"github.com/utafrali/ReputationGo/pkg/slug"
)

// CreateSourceInput holds the fields for registering a review source.
type CreateSourceInput struct {
	Name          string            `json:"name" validate:"required,max=200"`
	Platform      string            `json:"platform" validate:"required"`
	URL           string            `json:"url" validate:"required,url"`
	Enabled       *bool             `json:"enabled,omitempty"`
	SyncFrequency string            `json:"sync_frequency,omitempty"`
	Credentials   map[string]string `json:"credentials,omitempty"`
}

// UpdateSourceInput is a partial update. Nil fields are left unchanged; a
// non-nil Credentials map replaces the stored bag.
type UpdateSourceInput struct {
	Name          *string           `json:"name,omitempty" validate:"omitempty,max=200"`
	Platform      *string           `json:"platform,omitempty"`
	URL           *string           `json:"url,omitempty" validate:"omitempty,url"`
	Enabled       *bool             `json:"enabled,omitempty"`
	SyncFrequency *string           `json:"sync_frequency,omitempty"`
	Credentials   map[string]string `json:"credentials,omitempty"`
}

// SourceService implements the source registry.
type SourceService struct {
	repo   repository.SourceRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewSourceService creates a new source service.
func NewSourceService(repo repository.SourceRepository, logger *slog.Logger) *SourceService {
	return &SourceService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AddSource registers a source. It is enabled and synced daily unless the
// input says otherwise; it has never been synced.
func (s *SourceService) AddSource(ctx context.Context, in CreateSourceInput) (*domain.ReviewSource, error) {
	src := &domain.ReviewSource{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(in.Name),
		Platform:      strings.ToLower(strings.TrimSpace(in.Platform)),
		URL:           strings.TrimSpace(in.URL),
		Enabled:       true,
		SyncFrequency: strings.ToLower(strings.TrimSpace(in.SyncFrequency)),
		Credentials:   maps.Clone(in.Credentials),
	}
	if in.Enabled != nil {
		src.Enabled = *in.Enabled
	}
	if src.SyncFrequency == "" {
		src.SyncFrequency = domain.SyncDaily
	}
	if err := validateSource(src); err != nil {
		return nil, err
	}

	now := s.now()
	src.Slug = slug.Generate(src.Name)
	src.CreatedAt = now
	src.UpdatedAt = now

	if err := s.repo.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("add source: %w", err)
	}

	s.logger.InfoContext(ctx, "review source added",
		slog.String("source_id", src.ID),
		slog.String("name", src.Name),
		slog.String("platform", src.Platform),
	)
	return src, nil
}

// UpdateSource merges the non-nil fields of in into the stored source.
func (s *SourceService) UpdateSource(ctx context.Context, id string, in UpdateSourceInput) (*domain.ReviewSource, error) {
	src, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update source: %w", err)
	}

	if in.Name != nil {
		src.Name = strings.TrimSpace(*in.Name)
	}
	if in.Platform != nil {
		src.Platform = strings.ToLower(strings.TrimSpace(*in.Platform))
	}
	if in.URL != nil {
		src.URL = strings.TrimSpace(*in.URL)
	}
	if in.Enabled != nil {
		src.Enabled = *in.Enabled
	}
	if in.SyncFrequency != nil {
		src.SyncFrequency = strings.ToLower(strings.TrimSpace(*in.SyncFrequency))
	}
	if in.Credentials != nil {
		src.Credentials = maps.Clone(in.Credentials)
	}
	if err := validateSource(src); err != nil {
		return nil, err
	}

	src.Slug = slug.Generate(src.Name)
	src.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, src); err != nil {
		return nil, fmt.Errorf("update source: %w", err)
	}

	s.logger.InfoContext(ctx, "review source updated",
		slog.String("source_id", src.ID),
		slog.Bool("enabled", src.Enabled),
	)
	return src, nil
}

// DeleteSource removes a source. Reviews keep their source reference.
func (s *SourceService) DeleteSource(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	s.logger.InfoContext(ctx, "review source deleted", slog.String("source_id", id))
	return nil
}

// GetSource retrieves a source by ID.
func (s *SourceService) GetSource(ctx context.Context, id string) (*domain.ReviewSource, error) {
	src, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// ListSources returns every source ordered by name.
func (s *SourceService) ListSources(ctx context.Context) ([]domain.ReviewSource, error) {
	sources, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// ListEnabled returns the enabled sources, soonest next sync first.
func (s *SourceService) ListEnabled(ctx context.Context) ([]domain.ReviewSource, error) {
	sources, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled sources: %w", err)
	}
	enabled := make([]domain.ReviewSource, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	SortByNextDue(enabled)
	return enabled, nil
}

// SortByNextDue orders sources by next due sync. Never-synced sources come
// first, sources with frequency never come last, ties break by name then ID.
func SortByNextDue(sources []domain.ReviewSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		di, okI := sources[i].NextDue()
		dj, okJ := sources[j].NextDue()
		if okI != okJ {
			return okI
		}
		if okI && !di.Equal(dj) {
			return di.Before(dj)
		}
		if sources[i].Name != sources[j].Name {
			return sources[i].Name < sources[j].Name
		}
		return sources[i].ID < sources[j].ID
	})
}

func validateSource(src *domain.ReviewSource) error {
	fields := make(map[string]string)
	if src.Name == "" {
		fields["name"] = "is required"
	} else if slug.Generate(src.Name) == "" {
		fields["name"] = "must contain letters or digits"
	}
	if src.URL == "" {
		fields["url"] = "is required"
	}
	if !domain.IsValidPlatform(src.Platform) {
		fields["platform"] = "must be one of " + strings.Join(domain.ValidPlatforms(), ", ")
	}
	if !domain.IsValidSyncFrequency(src.SyncFrequency) {
		fields["sync_frequency"] = "must be one of " + strings.Join(domain.ValidSyncFrequencies(), ", ")
	}
	if len(fields) > 0 {
		return apperrors.InvalidFields("invalid review source", fields)
	}
	return nil
}
