package domain

import (
	"time"
)

// Metrics period constants.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

// TopKeywordLimit caps ReputationMetrics.TopKeywords.
const TopKeywordLimit = 10

// TrendPoint is one bucket of a trend series.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// KeywordStat is a ranked keyword with the mean sentiment of the reviews that
// contain it. AverageSentiment is nil when none of them carries sentiment.
type KeywordStat struct {
	Keyword          string   `json:"keyword"`
	Count            int      `json:"count"`
	AverageSentiment *float64 `json:"average_sentiment"`
}

// ReputationMetrics is a derived snapshot over [WindowStart, WindowEnd].
type ReputationMetrics struct {
	Period          string        `json:"period"`
	WindowStart     time.Time     `json:"window_start"`
	WindowEnd       time.Time     `json:"window_end"`
	AverageRating   float64       `json:"average_rating"`
	TotalReviews    int           `json:"total_reviews"`
	ResponseRate    float64       `json:"response_rate"`
	SentimentScore  float64       `json:"sentiment_score"`
	NeedsAttention  int           `json:"needs_attention"`
	ReviewsByRating map[int]int   `json:"reviews_by_rating"`
	RatingTrend     []TrendPoint  `json:"rating_trend"`
	VolumeTrend     []TrendPoint  `json:"volume_trend"`
	TopKeywords     []KeywordStat `json:"top_keywords"`
}

// ReviewSummary is an all-time aggregate over the review store.
type ReviewSummary struct {
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
}

// ValidPeriods returns the set of valid metrics periods.
func ValidPeriods() []string {
	return []string{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly}
}

// IsValidPeriod checks whether p is a known period.
func IsValidPeriod(p string) bool {
	for _, v := range ValidPeriods() {
		if v == p {
			return true
		}
	}
	return false
}

// PeriodDays is the default window length of a period in days.
func PeriodDays(period string) int {
	switch period {
	case PeriodDaily:
		return 1
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	case PeriodYearly:
		return 365
	default:
		return 0
	}
}

// EmptyHistogram returns a rating histogram with all five keys at zero.
func EmptyHistogram() map[int]int {
	return map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
}
