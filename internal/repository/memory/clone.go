package memory

import (
	"maps"
	"slices"

	"github.com/utafrali/ReputationGo/internal/domain"
)

// Stored values are copied in and out so callers never share memory with
// the store.

func cloneSource(s *domain.ReviewSource) domain.ReviewSource {
	c := *s
	c.Credentials = maps.Clone(s.Credentials)
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		c.LastSyncTime = &t
	}
	return c
}

func cloneReview(r *domain.Review) domain.Review {
	c := *r
	if r.Sentiment != nil {
		s := *r.Sentiment
		c.Sentiment = &s
	}
	if r.Response != nil {
		p := *r.Response
		c.Response = &p
	}
	return c
}

func cloneResponse(r *domain.ReviewResponse) domain.ReviewResponse {
	c := *r
	if r.TemplateID != nil {
		id := *r.TemplateID
		c.TemplateID = &id
	}
	if r.PublishedAt != nil {
		t := *r.PublishedAt
		c.PublishedAt = &t
	}
	return c
}

func cloneTemplate(t *domain.ResponseTemplate) domain.ResponseTemplate {
	c := *t
	c.Variables = slices.Clone(t.Variables)
	c.Defaults = maps.Clone(t.Defaults)
	return c
}

func cloneCompetitor(cp *domain.Competitor) domain.Competitor {
	c := *cp
	c.Sources = slices.Clone(cp.Sources)
	if cp.AverageRating != nil {
		v := *cp.AverageRating
		c.AverageRating = &v
	}
	if cp.TotalReviews != nil {
		v := *cp.TotalReviews
		c.TotalReviews = &v
	}
	if cp.LastUpdated != nil {
		v := *cp.LastUpdated
		c.LastUpdated = &v
	}
	return c
}
