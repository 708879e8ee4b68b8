// Package provider defines the boundary to external review platforms.
package provider

import (
	"context"

	"github.com/utafrali/ReputationGo/internal/domain"
)

// Provider fetches reviews for configured sources and aggregate stats for
// competitor tracking targets. Failures are returned as ProviderFailure
// errors and are always retryable.
type Provider interface {
	Name() string
	FetchReviews(ctx context.Context, source domain.ReviewSource) ([]domain.ExternalReview, error)
	FetchCompetitorStats(ctx context.Context, target domain.CompetitorSource) (domain.CompetitorStats, error)
}
