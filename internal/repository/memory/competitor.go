package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/ReputationGo/internal/domain"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

// CompetitorRepository implements repository.CompetitorRepository in memory.
type CompetitorRepository struct {
	mu          sync.RWMutex
	competitors map[string]domain.Competitor
}

// NewCompetitorRepository creates an empty in-memory competitor repository.
func NewCompetitorRepository() *CompetitorRepository {
	return &CompetitorRepository{competitors: make(map[string]domain.Competitor)}
}

func (r *CompetitorRepository) Create(_ context.Context, c *domain.Competitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.competitors[c.ID]; ok {
		return apperrors.AlreadyExists("competitor", "id", c.ID)
	}
	r.competitors[c.ID] = cloneCompetitor(c)
	return nil
}

func (r *CompetitorRepository) GetByID(_ context.Context, id string) (*domain.Competitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.competitors[id]
	if !ok {
		return nil, apperrors.NotFound("competitor", id)
	}
	out := cloneCompetitor(&c)
	return &out, nil
}

func (r *CompetitorRepository) List(_ context.Context) ([]domain.Competitor, error) {
	r.mu.RLock()
	out := make([]domain.Competitor, 0, len(r.competitors))
	for _, c := range r.competitors {
		out = append(out, cloneCompetitor(&c))
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

func (r *CompetitorRepository) UpdateStats(_ context.Context, id string, stats domain.CompetitorStats, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.competitors[id]
	if !ok {
		return apperrors.NotFound("competitor", id)
	}
	avg, total := stats.AverageRating, stats.TotalReviews
	c.AverageRating = &avg
	c.TotalReviews = &total
	c.LastUpdated = &updatedAt
	r.competitors[id] = c
	return nil
}

func (r *CompetitorRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.competitors[id]; !ok {
		return apperrors.NotFound("competitor", id)
	}
	delete(r.competitors, id)
	return nil
}
