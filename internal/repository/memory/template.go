package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/ReputationGo/internal/domain"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

// TemplateRepository implements repository.TemplateRepository in memory.
type TemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]domain.ResponseTemplate
}

// NewTemplateRepository creates an empty in-memory template repository.
func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{templates: make(map[string]domain.ResponseTemplate)}
}

func (r *TemplateRepository) Create(_ context.Context, t *domain.ResponseTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[t.ID]; ok {
		return apperrors.AlreadyExists("response template", "id", t.ID)
	}
	r.templates[t.ID] = cloneTemplate(t)
	return nil
}

func (r *TemplateRepository) GetByID(_ context.Context, id string) (*domain.ResponseTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, apperrors.NotFound("response template", id)
	}
	c := cloneTemplate(&t)
	return &c, nil
}

func (r *TemplateRepository) List(_ context.Context, category *string) ([]domain.ResponseTemplate, error) {
	r.mu.RLock()
	out := []domain.ResponseTemplate{}
	for _, t := range r.templates {
		if category == nil || t.Category == *category {
			out = append(out, cloneTemplate(&t))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *TemplateRepository) Update(_ context.Context, t *domain.ResponseTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.templates[t.ID]
	if !ok {
		return apperrors.NotFound("response template", t.ID)
	}
	c := cloneTemplate(t)
	c.UsageCount = stored.UsageCount
	c.SuccessCount = stored.SuccessCount
	r.templates[t.ID] = c
	return nil
}

func (r *TemplateRepository) RecordUsage(_ context.Context, id string, usage, success int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.templates[id]
	if !ok {
		return apperrors.NotFound("response template", id)
	}
	t.UsageCount += usage
	t.SuccessCount += success
	r.templates[id] = t
	return nil
}
