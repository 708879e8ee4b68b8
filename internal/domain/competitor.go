package domain

import (
	"time"
)

// CompetitorSource is one tracking target of a competitor.
type CompetitorSource struct {
	SourceType string `json:"source_type"`
	URL        string `json:"url"`
	Name       string `json:"name"`
}

// Competitor is a tracked rival business. AverageRating, TotalReviews and
// LastUpdated stay nil until the first refresh.
type Competitor struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Sources       []CompetitorSource `json:"sources"`
	AverageRating *float64           `json:"average_rating"`
	TotalReviews  *int               `json:"total_reviews"`
	LastUpdated   *time.Time         `json:"last_updated"`
	CreatedAt     time.Time          `json:"created_at"`
}

// CompetitorStats is what a provider reports for one tracking target.
type CompetitorStats struct {
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
}

// ComparisonValue compares one metric. Ratio is competitor/own*100 and is nil
// when it cannot be computed; Display is Ratio clamped to [0, 100].
type ComparisonValue struct {
	Own        float64  `json:"own"`
	Competitor *float64 `json:"competitor"`
	Ratio      *float64 `json:"ratio"`
	Display    float64  `json:"display"`
}

// Comparison is the side-by-side view of the business and one competitor.
type Comparison struct {
	CompetitorID   string          `json:"competitor_id"`
	CompetitorName string          `json:"competitor_name"`
	Rating         ComparisonValue `json:"rating"`
	Volume         ComparisonValue `json:"volume"`
	LastUpdated    *time.Time      `json:"last_updated"`
}

// Compare builds a ComparisonValue. A nil competitor value or a zero own
// value leaves Ratio nil and Display at 0.
func Compare(own float64, competitor *float64) ComparisonValue {
	cv := ComparisonValue{Own: own, Competitor: competitor}
	if competitor == nil || own == 0 {
		return cv
	}
	ratio := *competitor / own * 100
	cv.Ratio = &ratio
	cv.Display = min(max(ratio, 0), 100)
	return cv
}
