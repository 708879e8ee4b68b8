package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/utafrali/ReputationGo/internal/domain"
)

// ErrVersionConflict is returned by ReviewRepository.UpdateWithVersion when
// the stored version no longer matches the expected one.
var ErrVersionConflict = errors.New("review version conflict")

// ReviewFilter defines filter criteria for querying reviews. Nil fields do
// not constrain the result.
type ReviewFilter struct {
	SourceID    *string
	MinRating   *int
	MaxRating   *int
	Status      *string
	Sentiment   *string
	HasResponse *bool
	Search      *string
	Page        int
	PerPage     int
}

// SourceRepository persists review sources.
type SourceRepository interface {
	// Create inserts a source. A duplicate slug yields an ErrAlreadyExists error.
	Create(ctx context.Context, source *domain.ReviewSource) error

	GetByID(ctx context.Context, id string) (*domain.ReviewSource, error)

	// List returns all sources ordered by name.
	List(ctx context.Context) ([]domain.ReviewSource, error)

	// Update replaces a source's mutable fields.
	Update(ctx context.Context, source *domain.ReviewSource) error

	Delete(ctx context.Context, id string) error
}

// ReviewRepository persists reviews.
type ReviewRepository interface {
	// Upsert inserts a review or updates the one stored under the same
	// (SourceID, ExternalID). On update the stored ID, reply fields and a
	// responded status are kept. It reports whether a row was created and
	// leaves the stored state in review.
	Upsert(ctx context.Context, review *domain.Review) (bool, error)

	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// Query returns one page of matching reviews, newest first with ties
	// broken by ID, plus the total match count.
	Query(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)

	// ListInWindow returns every review published in [start, end] as a
	// consistent snapshot.
	ListInWindow(ctx context.Context, start, end time.Time) ([]domain.Review, error)

	// UpdateWithVersion writes review if the stored version equals
	// expectedVersion and bumps the version. A mismatch yields ErrVersionConflict.
	UpdateWithVersion(ctx context.Context, review *domain.Review, expectedVersion int64) error

	// Summary aggregates every stored review.
	Summary(ctx context.Context) (domain.ReviewSummary, error)
}

// ResponseRepository persists review responses.
type ResponseRepository interface {
	// Create inserts a response. A second published response for the same
	// review yields an ErrConflict error.
	Create(ctx context.Context, response *domain.ReviewResponse) error

	GetByID(ctx context.Context, id string) (*domain.ReviewResponse, error)

	// ListByReview returns a review's responses, oldest first.
	ListByReview(ctx context.Context, reviewID string) ([]domain.ReviewResponse, error)

	// Transition moves response from status from to response.Status. It
	// yields an ErrConflict error when the stored status is no longer from
	// or a published response already exists for the review.
	Transition(ctx context.Context, response *domain.ReviewResponse, from string) error
}

// TemplateRepository persists response templates.
type TemplateRepository interface {
	Create(ctx context.Context, template *domain.ResponseTemplate) error

	GetByID(ctx context.Context, id string) (*domain.ResponseTemplate, error)

	// List returns templates ordered by name, optionally filtered by category.
	List(ctx context.Context, category *string) ([]domain.ResponseTemplate, error)

	Update(ctx context.Context, template *domain.ResponseTemplate) error

	// RecordUsage atomically adds to the usage and success counters.
	RecordUsage(ctx context.Context, id string, usage, success int) error
}

// CompetitorRepository persists competitors.
type CompetitorRepository interface {
	Create(ctx context.Context, competitor *domain.Competitor) error

	GetByID(ctx context.Context, id string) (*domain.Competitor, error)

	// List returns competitors ordered by name.
	List(ctx context.Context) ([]domain.Competitor, error)

	// UpdateStats writes the refresh-derived fields.
	UpdateStats(ctx context.Context, id string, stats domain.CompetitorStats, updatedAt time.Time) error

	Delete(ctx context.Context, id string) error
}

// Locker guards a key across service instances.
type Locker interface {
	// TryLock acquires key for ttl. It returns false when another holder
	// owns the key. The returned func releases the lock if still held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Matches reports whether r satisfies every set field of the filter.
// Reviews without sentiment never match a sentiment bucket.
func (f ReviewFilter) Matches(r *domain.Review) bool {
	if f.SourceID != nil && r.SourceID != *f.SourceID {
		return false
	}
	if f.MinRating != nil && r.Rating < *f.MinRating {
		return false
	}
	if f.MaxRating != nil && r.Rating > *f.MaxRating {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Sentiment != nil && r.SentimentBucket() != *f.Sentiment {
		return false
	}
	if f.HasResponse != nil && r.HasResponse() != *f.HasResponse {
		return false
	}
	if f.Search != nil && *f.Search != "" {
		q := strings.ToLower(*f.Search)
		if !strings.Contains(strings.ToLower(r.AuthorName), q) && !strings.Contains(strings.ToLower(r.Content), q) {
			return false
		}
	}
	return true
}

// SortReviews orders reviews newest first, ties broken by ascending ID.
func SortReviews(reviews []domain.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		a, b := reviews[i], reviews[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
}
