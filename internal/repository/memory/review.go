package memory

import (
	"context"
	"sync"
	"time"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/repository"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
	"github.com/utafrali/ReputationGo/pkg/pagination"
)

// ReviewRepository implements repository.ReviewRepository in memory. One
// RWMutex covers both maps so readers always see whole reviews.
type ReviewRepository struct {
	mu       sync.RWMutex
	reviews  map[string]domain.Review
	external map[string]string
}

// NewReviewRepository creates an empty in-memory review repository.
func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{
		reviews:  make(map[string]domain.Review),
		external: make(map[string]string),
	}
}

func externalKey(sourceID, externalID string) string {
	return sourceID + "\x00" + externalID
}

func (r *ReviewRepository) Upsert(_ context.Context, rev *domain.Review) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := externalKey(rev.SourceID, rev.ExternalID)
	id, exists := r.external[key]
	if !exists {
		if rev.Version == 0 {
			rev.Version = 1
		}
		r.reviews[rev.ID] = cloneReview(rev)
		r.external[key] = rev.ID
		return true, nil
	}

	stored := r.reviews[id]
	stored.AuthorName = rev.AuthorName
	stored.Rating = rev.Rating
	stored.Content = rev.Content
	stored.PublishedAt = rev.PublishedAt
	stored.Sentiment = rev.Sentiment
	if stored.Status != domain.ReviewStatusResponded {
		stored.Status = rev.Status
	}
	stored.UpdatedAt = rev.UpdatedAt
	stored.Version++

	r.reviews[id] = cloneReview(&stored)
	*rev = cloneReview(&stored)
	return false, nil
}

func (r *ReviewRepository) GetByID(_ context.Context, id string) (*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rev, ok := r.reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", id)
	}
	c := cloneReview(&rev)
	return &c, nil
}

func (r *ReviewRepository) Query(_ context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	r.mu.RLock()
	var matched []domain.Review
	for _, rev := range r.reviews {
		if filter.Matches(&rev) {
			matched = append(matched, cloneReview(&rev))
		}
	}
	r.mu.RUnlock()

	repository.SortReviews(matched)
	p := pagination.New(filter.Page, filter.PerPage)
	lo, hi := p.Window(len(matched))
	return matched[lo:hi], len(matched), nil
}

func (r *ReviewRepository) ListInWindow(_ context.Context, start, end time.Time) ([]domain.Review, error) {
	r.mu.RLock()
	var out []domain.Review
	for _, rev := range r.reviews {
		if !rev.PublishedAt.Before(start) && !rev.PublishedAt.After(end) {
			out = append(out, cloneReview(&rev))
		}
	}
	r.mu.RUnlock()

	repository.SortReviews(out)
	return out, nil
}

func (r *ReviewRepository) UpdateWithVersion(_ context.Context, rev *domain.Review, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.reviews[rev.ID]
	if !ok {
		return apperrors.NotFound("review", rev.ID)
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	rev.Version = expectedVersion + 1
	r.reviews[rev.ID] = cloneReview(rev)
	return nil
}

func (r *ReviewRepository) Summary(_ context.Context) (domain.ReviewSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum domain.ReviewSummary
	total := 0
	for _, rev := range r.reviews {
		total += rev.Rating
		sum.TotalReviews++
	}
	if sum.TotalReviews > 0 {
		sum.AverageRating = float64(total) / float64(sum.TotalReviews)
	}
	return sum, nil
}
