package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/ReputationGo/internal/domain"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

// ResponseRepository implements repository.ResponseRepository in memory.
// The published-per-review check and the write share one lock.
type ResponseRepository struct {
	mu        sync.RWMutex
	responses map[string]domain.ReviewResponse
}

// NewResponseRepository creates an empty in-memory response repository.
func NewResponseRepository() *ResponseRepository {
	return &ResponseRepository{responses: make(map[string]domain.ReviewResponse)}
}

func (r *ResponseRepository) Create(_ context.Context, resp *domain.ReviewResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.responses[resp.ID]; ok {
		return apperrors.AlreadyExists("review response", "id", resp.ID)
	}
	if resp.Status == domain.ResponseStatusPublished && r.hasPublished(resp.ReviewID) {
		return alreadyPublished(resp.ReviewID)
	}
	r.responses[resp.ID] = cloneResponse(resp)
	return nil
}

func (r *ResponseRepository) GetByID(_ context.Context, id string) (*domain.ReviewResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resp, ok := r.responses[id]
	if !ok {
		return nil, apperrors.NotFound("review response", id)
	}
	c := cloneResponse(&resp)
	return &c, nil
}

func (r *ResponseRepository) ListByReview(_ context.Context, reviewID string) ([]domain.ReviewResponse, error) {
	r.mu.RLock()
	out := []domain.ReviewResponse{}
	for _, resp := range r.responses {
		if resp.ReviewID == reviewID {
			out = append(out, cloneResponse(&resp))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ResponseRepository) Transition(_ context.Context, resp *domain.ReviewResponse, from string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.responses[resp.ID]
	if !ok {
		return apperrors.NotFound("review response", resp.ID)
	}
	if stored.Status != from {
		return apperrors.Conflict("review response is already " + stored.Status)
	}
	if resp.Status == domain.ResponseStatusPublished && r.hasPublished(stored.ReviewID) {
		return alreadyPublished(stored.ReviewID)
	}
	r.responses[resp.ID] = cloneResponse(resp)
	return nil
}

func (r *ResponseRepository) hasPublished(reviewID string) bool {
	for _, resp := range r.responses {
		if resp.ReviewID == reviewID && resp.Status == domain.ResponseStatusPublished {
			return true
		}
	}
	return false
}

func alreadyPublished(reviewID string) error {
	return apperrors.Conflict("review " + reviewID + " already has a published response")
}
