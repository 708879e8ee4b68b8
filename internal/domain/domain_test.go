package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Source Tests
// ============================================================================

func TestIsValidPlatform(t *testing.T) {
	for _, p := range ValidPlatforms() {
		assert.True(t, IsValidPlatform(p), "expected %q to be valid", p)
	}
	assert.False(t, IsValidPlatform("myspace"))
	assert.False(t, IsValidPlatform("Google"))
}

func TestIsValidSyncFrequency(t *testing.T) {
	assert.ElementsMatch(t, []string{SyncHourly, SyncDaily, SyncWeekly, SyncNever}, ValidSyncFrequencies())
	assert.False(t, IsValidSyncFrequency("monthly"))
}

func TestSyncInterval(t *testing.T) {
	d, ok := SyncInterval(SyncHourly)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, d)

	d, ok = SyncInterval(SyncWeekly)
	assert.True(t, ok)
	assert.Equal(t, 168*time.Hour, d)

	_, ok = SyncInterval(SyncNever)
	assert.False(t, ok)
}

func TestReviewSource_NextDue(t *testing.T) {
	last := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	s := &ReviewSource{Enabled: true, SyncFrequency: SyncDaily}
	due, ok := s.NextDue()
	require.True(t, ok)
	assert.True(t, due.IsZero(), "never-synced source is due immediately")

	s.LastSyncTime = &last
	due, ok = s.NextDue()
	require.True(t, ok)
	assert.Equal(t, last.Add(24*time.Hour), due)

	s.SyncFrequency = SyncNever
	_, ok = s.NextDue()
	assert.False(t, ok)
}

func TestReviewSource_IsDue(t *testing.T) {
	last := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &ReviewSource{Enabled: true, SyncFrequency: SyncHourly, LastSyncTime: &last}

	assert.False(t, s.IsDue(last.Add(59*time.Minute)))
	assert.True(t, s.IsDue(last.Add(time.Hour)))

	s.Enabled = false
	assert.False(t, s.IsDue(last.Add(2*time.Hour)))

	s.Enabled = true
	s.SyncFrequency = SyncNever
	assert.False(t, s.IsDue(last.Add(1000*time.Hour)))
}

// ============================================================================
// Review Status Tests
// ============================================================================

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		review    Review
		responses []ReviewResponse
		want      string
	}{
		{"positive review", Review{ID: "r", Rating: 5}, nil, ReviewStatusNew},
		{"low rating", Review{ID: "r", Rating: 2}, nil, ReviewStatusFlagged},
		{"negative sentiment", Review{ID: "r", Rating: 4, Sentiment: &Sentiment{Score: -0.5}}, nil, ReviewStatusFlagged},
		{"sentiment on threshold", Review{ID: "r", Rating: 3, Sentiment: &Sentiment{Score: -0.3}}, nil, ReviewStatusNew},
		{
			"published response",
			Review{ID: "r", Rating: 1},
			[]ReviewResponse{{ReviewID: "r", Status: ResponseStatusPublished}},
			ReviewStatusResponded,
		},
		{
			"draft only",
			Review{ID: "r", Rating: 1},
			[]ReviewResponse{{ReviewID: "r", Status: ResponseStatusDraft}, {ReviewID: "r", Status: ResponseStatusRejected}},
			ReviewStatusFlagged,
		},
		{
			"published for another review",
			Review{ID: "r", Rating: 5},
			[]ReviewResponse{{ReviewID: "other", Status: ResponseStatusPublished}},
			ReviewStatusNew,
		},
		{"reply fields", Review{ID: "r", Rating: 1, Response: &PublishedReply{Content: "thanks"}}, nil, ReviewStatusResponded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(&tt.review, tt.responses))
		})
	}
}

func TestBucketForScore(t *testing.T) {
	assert.Equal(t, SentimentPositive, BucketForScore(0.11))
	assert.Equal(t, SentimentNeutral, BucketForScore(0.1))
	assert.Equal(t, SentimentNeutral, BucketForScore(0))
	assert.Equal(t, SentimentNeutral, BucketForScore(-0.1))
	assert.Equal(t, SentimentNegative, BucketForScore(-0.11))
}

func TestReview_SentimentBucket(t *testing.T) {
	r := &Review{Rating: 5}
	assert.Empty(t, r.SentimentBucket())

	r.Sentiment = &Sentiment{Score: -0.8}
	assert.Equal(t, SentimentNegative, r.SentimentBucket())
}

func TestBucketForRating(t *testing.T) {
	assert.Equal(t, SentimentNegative, BucketForRating(1))
	assert.Equal(t, SentimentNeutral, BucketForRating(3))
	assert.Equal(t, SentimentPositive, BucketForRating(4))
}

// ============================================================================
// Response Tests
// ============================================================================

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(ResponseStatusDraft, ResponseStatusPublished))
	assert.True(t, CanTransition(ResponseStatusDraft, ResponseStatusRejected))
	assert.False(t, CanTransition(ResponseStatusDraft, ResponseStatusDraft))
	assert.False(t, CanTransition(ResponseStatusPublished, ResponseStatusRejected))
	assert.False(t, CanTransition(ResponseStatusRejected, ResponseStatusPublished))
}

// ============================================================================
// Template Tests
// ============================================================================

func TestPlaceholders(t *testing.T) {
	got := Placeholders("Hi {{name}}, thanks for {{ rating }} stars. {{name}} {{bad-name}} {x}")
	assert.Equal(t, []string{"name", "rating"}, got)
	assert.Empty(t, Placeholders("no variables"))
}

func TestUndeclaredPlaceholders(t *testing.T) {
	tmpl := &ResponseTemplate{
		Content:   "Hi {{name}}, {{zeta}} and {{alpha}}",
		Variables: []string{"name"},
	}
	assert.Equal(t, []string{"alpha", "zeta"}, tmpl.UndeclaredPlaceholders())

	tmpl.Variables = []string{"name", "alpha", "zeta", "unused"}
	assert.Empty(t, tmpl.UndeclaredPlaceholders())
}

func TestSuccessRate(t *testing.T) {
	tmpl := &ResponseTemplate{}
	assert.Zero(t, tmpl.SuccessRate())

	tmpl.UsageCount, tmpl.SuccessCount = 4, 3
	assert.InDelta(t, 0.75, tmpl.SuccessRate(), 1e-9)
}

func sampleReview() *Review {
	return &Review{
		ID:          "rev-1",
		AuthorName:  "Dana",
		Rating:      4,
		Content:     "Great coffee",
		PublishedAt: time.Date(2025, 5, 17, 9, 30, 0, 0, time.UTC),
	}
}

func TestRender_Precedence(t *testing.T) {
	tmpl := &ResponseTemplate{
		Content:   "Dear {{name}}, thanks for the {{rating}}-star review on {{source}} ({{date}}). {{signature}}",
		Variables: []string{"name", "rating", "source", "date", "signature"},
		Defaults:  map[string]string{"signature": "The Team", "name": "friend"},
	}

	out, err := tmpl.Render(RenderContext{
		Review:     sampleReview(),
		SourceName: "Google",
		Overrides:  map[string]string{"rating": "five"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear Dana, thanks for the five-star review on Google (May 17, 2025). The Team", out)
}

func TestRender_FallsBackToDefault(t *testing.T) {
	tmpl := &ResponseTemplate{
		Content:   "Dear {{name}}",
		Variables: []string{"name"},
		Defaults:  map[string]string{"name": "valued customer"},
	}
	r := sampleReview()
	r.AuthorName = ""

	out, err := tmpl.Render(RenderContext{Review: r})
	require.NoError(t, err)
	assert.Equal(t, "Dear valued customer", out)
}

func TestRender_MissingDataLeftVerbatim(t *testing.T) {
	tmpl := &ResponseTemplate{
		Content:   "Hi {{name}}, see you at {{branch}}. {{undeclared}}",
		Variables: []string{"name", "branch"},
	}
	r := sampleReview()
	r.AuthorName = ""

	out, err := tmpl.Render(RenderContext{Review: r, Overrides: map[string]string{"undeclared": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "Hi {{name}}, see you at {{branch}}. {{undeclared}}", out)
}

func TestRender_AllSuppliedLeavesNoPlaceholders(t *testing.T) {
	tmpl := &ResponseTemplate{
		Content:   "{{name}} {{author_name}} {{rating}} {{date}} {{content}} {{source}} {{extra}}",
		Variables: []string{"name", "author_name", "rating", "date", "content", "source", "extra"},
	}
	out, err := tmpl.Render(RenderContext{
		Review:     sampleReview(),
		SourceName: "Yelp",
		Overrides:  map[string]string{"extra": "ok"},
	})
	require.NoError(t, err)
	assert.False(t, strings.Contains(out, "{{"), out)
}

func TestRender_NilInputs(t *testing.T) {
	var tmpl *ResponseTemplate
	_, err := tmpl.Render(RenderContext{Review: sampleReview()})
	assert.ErrorIs(t, err, ErrNilRenderInput)

	_, err = (&ResponseTemplate{Content: "x"}).Render(RenderContext{})
	assert.ErrorIs(t, err, ErrNilRenderInput)
}

// ============================================================================
// Metrics & Competitor Tests
// ============================================================================

func TestPeriodDays(t *testing.T) {
	assert.Equal(t, 1, PeriodDays(PeriodDaily))
	assert.Equal(t, 7, PeriodDays(PeriodWeekly))
	assert.Equal(t, 30, PeriodDays(PeriodMonthly))
	assert.Equal(t, 365, PeriodDays(PeriodYearly))
	assert.Zero(t, PeriodDays("hourly"))
	assert.False(t, IsValidPeriod("hourly"))
}

func TestEmptyHistogram(t *testing.T) {
	h := EmptyHistogram()
	assert.Len(t, h, 5)
	for k := 1; k <= 5; k++ {
		assert.Zero(t, h[k])
	}
}

func TestCompare(t *testing.T) {
	c := 4.5
	cv := Compare(4.0, &c)
	require.NotNil(t, cv.Ratio)
	assert.InDelta(t, 112.5, *cv.Ratio, 1e-9)
	assert.Equal(t, 100.0, cv.Display)

	low := 2.0
	cv = Compare(4.0, &low)
	assert.InDelta(t, 50.0, *cv.Ratio, 1e-9)
	assert.InDelta(t, 50.0, cv.Display, 1e-9)

	cv = Compare(0, &c)
	assert.Nil(t, cv.Ratio)
	assert.Zero(t, cv.Display)

	cv = Compare(4.0, nil)
	assert.Nil(t, cv.Ratio)
	assert.Nil(t, cv.Competitor)
}
