package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/ReputationGo/internal/domain"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

// SourceRepository implements repository.SourceRepository in memory.
type SourceRepository struct {
	mu      sync.RWMutex
	sources map[string]domain.ReviewSource
}

// NewSourceRepository creates an empty in-memory source repository.
func NewSourceRepository() *SourceRepository {
	return &SourceRepository{sources: make(map[string]domain.ReviewSource)}
}

func (r *SourceRepository) Create(_ context.Context, s *domain.ReviewSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[s.ID]; ok {
		return apperrors.AlreadyExists("review source", "id", s.ID)
	}
	if r.slugTaken(s.Slug, "") {
		return apperrors.AlreadyExists("review source", "name", s.Name)
	}
	r.sources[s.ID] = cloneSource(s)
	return nil
}

func (r *SourceRepository) GetByID(_ context.Context, id string) (*domain.ReviewSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[id]
	if !ok {
		return nil, apperrors.NotFound("review source", id)
	}
	c := cloneSource(&s)
	return &c, nil
}

func (r *SourceRepository) List(_ context.Context) ([]domain.ReviewSource, error) {
	r.mu.RLock()
	out := make([]domain.ReviewSource, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, cloneSource(&s))
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

func (r *SourceRepository) Update(_ context.Context, s *domain.ReviewSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[s.ID]; !ok {
		return apperrors.NotFound("review source", s.ID)
	}
	if r.slugTaken(s.Slug, s.ID) {
		return apperrors.AlreadyExists("review source", "name", s.Name)
	}
	r.sources[s.ID] = cloneSource(s)
	return nil
}

func (r *SourceRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[id]; !ok {
		return apperrors.NotFound("review source", id)
	}
	delete(r.sources, id)
	return nil
}

// slugTaken must be called with the lock held.
func (r *SourceRepository) slugTaken(slug, exceptID string) bool {
	for id, s := range r.sources {
		if id != exceptID && s.Slug == slug {
			return true
		}
	}
	return false
}
