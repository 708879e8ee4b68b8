package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/repository"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

var variableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TemplateInput holds the editable fields of a response template.
type TemplateInput struct {
	Name      string            `json:"name" validate:"required,max=200"`
	Category  string            `json:"category" validate:"required"`
	Content   string            `json:"content" validate:"required,max=5000"`
	Variables []string          `json:"variables"`
	Defaults  map[string]string `json:"defaults,omitempty"`
}

// TemplateService implements the template engine.
type TemplateService struct {
	templates repository.TemplateRepository
	reviews   repository.ReviewRepository
	sources   repository.SourceRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewTemplateService creates a new template service.
func NewTemplateService(
	templates repository.TemplateRepository,
	reviews repository.ReviewRepository,
	sources repository.SourceRepository,
	logger *slog.Logger,
) *TemplateService {
	return &TemplateService{
		templates: templates,
		reviews:   reviews,
		sources:   sources,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateTemplate validates and stores a new template.
func (s *TemplateService) CreateTemplate(ctx context.Context, in TemplateInput, createdBy string) (*domain.ResponseTemplate, error) {
	t := &domain.ResponseTemplate{ID: uuid.New().String(), CreatedBy: createdBy}
	applyTemplateInput(t, in)
	if err := validateTemplate(t); err != nil {
		return nil, err
	}

	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.logger.InfoContext(ctx, "response template created",
		slog.String("template_id", t.ID),
		slog.String("category", t.Category),
	)
	return t, nil
}

// UpdateTemplate replaces the editable fields. Usage counters are kept.
func (s *TemplateService) UpdateTemplate(ctx context.Context, id string, in TemplateInput) (*domain.ResponseTemplate, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	applyTemplateInput(t, in)
	if err := validateTemplate(t); err != nil {
		return nil, err
	}

	t.UpdatedAt = s.now()
	if err := s.templates.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// GetTemplate retrieves a template by ID.
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*domain.ResponseTemplate, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// ListTemplates returns templates ordered by name, optionally limited to one
// category.
func (s *TemplateService) ListTemplates(ctx context.Context, category *string) ([]domain.ResponseTemplate, error) {
	if category != nil && !domain.IsValidTemplateCategory(*category) {
		return nil, apperrors.InvalidFields("invalid template filter", map[string]string{
			"category": "must be one of " + strings.Join(domain.ValidSentimentBuckets(), ", "),
		})
	}
	templates, err := s.templates.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Render renders a stored template against a stored review. A deleted source
// leaves the source variable to the template default.
func (s *TemplateService) Render(ctx context.Context, templateID, reviewID string, overrides map[string]string) (string, error) {
	t, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	var sourceName string
	src, err := s.sources.GetByID(ctx, review.SourceID)
	switch {
	case err == nil:
		sourceName = src.Name
	case !errors.Is(err, apperrors.ErrNotFound):
		return "", fmt.Errorf("render template: %w", err)
	}

	return t.Render(domain.RenderContext{Review: review, SourceName: sourceName, Overrides: overrides})
}

// SuggestTemplates ranks templates for a review: its sentiment bucket first,
// neutral second, then by success rate, usage and name. Reviews without
// sentiment are bucketed by rating.
func (s *TemplateService) SuggestTemplates(ctx context.Context, reviewID string) ([]domain.ResponseTemplate, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("suggest templates: %w", err)
	}
	bucket := review.SentimentBucket()
	if bucket == "" {
		bucket = domain.BucketForRating(review.Rating)
	}

	all, err := s.templates.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("suggest templates: %w", err)
	}

	rank := func(t *domain.ResponseTemplate) int {
		switch t.Category {
		case bucket:
			return 0
		case domain.SentimentNeutral:
			return 1
		}
		return -1
	}
	out := make([]domain.ResponseTemplate, 0, len(all))
	for i := range all {
		if rank(&all[i]) >= 0 {
			out = append(out, all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		if sa, sb := a.SuccessRate(), b.SuccessRate(); sa != sb {
			return sa > sb
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out, nil
}

func applyTemplateInput(t *domain.ResponseTemplate, in TemplateInput) {
	t.Name = strings.TrimSpace(in.Name)
	t.Category = strings.ToLower(strings.TrimSpace(in.Category))
	t.Content = in.Content

	seen := make(map[string]bool, len(in.Variables))
	t.Variables = make([]string, 0, len(in.Variables))
	for _, v := range in.Variables {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		t.Variables = append(t.Variables, v)
	}
	t.Defaults = maps.Clone(in.Defaults)
}

// validateTemplate rejects templates whose content uses placeholders that
// are not declared. The error lists them.
func validateTemplate(t *domain.ResponseTemplate) error {
	fields := make(map[string]string)
	if t.Name == "" {
		fields["name"] = "is required"
	}
	if strings.TrimSpace(t.Content) == "" {
		fields["content"] = "is required"
	}
	if !domain.IsValidTemplateCategory(t.Category) {
		fields["category"] = "must be one of " + strings.Join(domain.ValidSentimentBuckets(), ", ")
	}

	var badVars []string
	for _, v := range t.Variables {
		if !variableNameRe.MatchString(v) {
			badVars = append(badVars, v)
		}
	}
	if len(badVars) > 0 {
		fields["variables"] = "invalid names: " + strings.Join(badVars, ", ")
	}

	declared := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		declared[v] = true
	}
	var undeclaredDefaults []string
	for k := range t.Defaults {
		if !declared[k] {
			undeclaredDefaults = append(undeclaredDefaults, k)
		}
	}
	if len(undeclaredDefaults) > 0 {
		sort.Strings(undeclaredDefaults)
		fields["defaults"] = "undeclared variables: " + strings.Join(undeclaredDefaults, ", ")
	}

	if missing := t.UndeclaredPlaceholders(); len(missing) > 0 {
		fields["content"] = "undeclared placeholders: " + strings.Join(missing, ", ")
	}

	if len(fields) > 0 {
		return apperrors.InvalidFields("invalid response template", fields)
	}
	return nil
}
