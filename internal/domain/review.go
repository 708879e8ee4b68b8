package domain

import (
	"time"
)

// Review status constants.
const (
	ReviewStatusNew       = "new"
	ReviewStatusFlagged   = "flagged"
	ReviewStatusResponded = "responded"
)

// Sentiment bucket constants.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Thresholds for the review status rule and sentiment buckets.
const (
	FlagRatingThreshold    = 2
	FlagSentimentThreshold = -0.3
	SentimentBucketBound   = 0.1
)

// Sentiment is a precomputed tone score in [-1, 1] with a non-negative
// magnitude.
type Sentiment struct {
	Score     float64 `json:"score" validate:"gte=-1,lte=1"`
	Magnitude float64 `json:"magnitude" validate:"gte=0"`
}

// PublishedReply mirrors the published response on the review itself.
type PublishedReply struct {
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
	Author      string    `json:"author"`
}

// Review is one customer review ingested from a source.
type Review struct {
	ID          string          `json:"id"`
	SourceID    string          `json:"source_id"`
	ExternalID  string          `json:"external_id"`
	AuthorName  string          `json:"author_name"`
	Rating      int             `json:"rating"`
	Content     string          `json:"content"`
	PublishedAt time.Time       `json:"published_at"`
	Status      string          `json:"status"`
	Sentiment   *Sentiment      `json:"sentiment,omitempty"`
	Response    *PublishedReply `json:"response,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ExternalReview is a review as delivered by a provider, keyed by the
// provider's own identifier.
type ExternalReview struct {
	ExternalID  string     `json:"external_id" validate:"required"`
	AuthorName  string     `json:"author_name"`
	Rating      int        `json:"rating" validate:"min=1,max=5"`
	Content     string     `json:"content"`
	PublishedAt time.Time  `json:"published_at" validate:"required"`
	Sentiment   *Sentiment `json:"sentiment,omitempty"`
}

// HasResponse reports whether a published reply is attached.
func (r *Review) HasResponse() bool {
	return r.Response != nil
}

// NeedsFlag reports whether the rating or sentiment marks the review for
// attention. Either condition is enough.
func (r *Review) NeedsFlag() bool {
	if r.Rating <= FlagRatingThreshold {
		return true
	}
	return r.Sentiment != nil && r.Sentiment.Score < FlagSentimentThreshold
}

// DeriveStatus is the single rule for a review's status: responded when a
// published response exists, flagged when NeedsFlag, otherwise new.
// The review's own reply fields count as a published response.
func DeriveStatus(r *Review, responses []ReviewResponse) string {
	if r.HasResponse() {
		return ReviewStatusResponded
	}
	for i := range responses {
		if responses[i].ReviewID == r.ID && responses[i].Status == ResponseStatusPublished {
			return ReviewStatusResponded
		}
	}
	if r.NeedsFlag() {
		return ReviewStatusFlagged
	}
	return ReviewStatusNew
}

// ValidReviewStatuses returns the set of valid review statuses.
func ValidReviewStatuses() []string {
	return []string{ReviewStatusNew, ReviewStatusFlagged, ReviewStatusResponded}
}

// IsValidReviewStatus checks whether s is a known review status.
func IsValidReviewStatus(s string) bool {
	for _, v := range ValidReviewStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// ValidSentimentBuckets returns the sentiment bucket names.
func ValidSentimentBuckets() []string {
	return []string{SentimentPositive, SentimentNeutral, SentimentNegative}
}

// IsValidSentimentBucket checks whether b is a known bucket.
func IsValidSentimentBucket(b string) bool {
	for _, v := range ValidSentimentBuckets() {
		if v == b {
			return true
		}
	}
	return false
}

// BucketForScore maps a score to positive (> 0.1), neutral (-0.1..0.1
// inclusive) or negative (< -0.1).
func BucketForScore(score float64) string {
	switch {
	case score > SentimentBucketBound:
		return SentimentPositive
	case score < -SentimentBucketBound:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// SentimentBucket returns the review's bucket, or "" when it carries no
// sentiment.
func (r *Review) SentimentBucket() string {
	if r.Sentiment == nil {
		return ""
	}
	return BucketForScore(r.Sentiment.Score)
}

// BucketForRating is the fallback bucket used when a review has no sentiment.
func BucketForRating(rating int) string {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating <= 2:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
