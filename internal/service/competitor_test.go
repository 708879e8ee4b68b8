package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ReputationGo/internal/domain"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

func TestAddCompetitor_DropsEmptyURLs(t *testing.T) {
	f := newFixture(t)

	c, err := f.competitors.AddCompetitor(context.Background(), AddCompetitorInput{
		Name: "Cafe Rival",
		Sources: []domain.CompetitorSource{
			{SourceType: "google", URL: "https://maps.example.com/rival", Name: "Maps"},
			{SourceType: "yelp", URL: "  "},
		},
	})
	require.NoError(t, err)

	require.Len(t, c.Sources, 1)
	assert.Equal(t, "https://maps.example.com/rival", c.Sources[0].URL)
	assert.Nil(t, c.AverageRating)
	assert.Nil(t, c.TotalReviews)
	assert.Nil(t, c.LastUpdated)

	stored, err := f.competitors.GetCompetitor(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Sources, 1)
}

func TestAddCompetitor_DefaultsSourceType(t *testing.T) {
	f := newFixture(t)

	c, err := f.competitors.AddCompetitor(context.Background(), AddCompetitorInput{
		Name:    "Rival",
		Sources: []domain.CompetitorSource{{URL: "https://rival.example.com"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformOther, c.Sources[0].SourceType)
}

func TestAddCompetitor_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		in    AddCompetitorInput
		field string
	}{
		{"missing name", AddCompetitorInput{Sources: []domain.CompetitorSource{{URL: "https://x.example.com"}}}, "name"},
		{"only empty urls", AddCompetitorInput{Name: "x", Sources: []domain.CompetitorSource{{URL: ""}}}, "sources"},
		{"unknown source type", AddCompetitorInput{Name: "x", Sources: []domain.CompetitorSource{{SourceType: "myspace", URL: "https://x.example.com"}}}, "sources"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.competitors.AddCompetitor(context.Background(), tt.in)
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}

	list, err := f.competitors.ListCompetitors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func addRival(t *testing.T, f *fixture, urls ...string) *domain.Competitor {
	t.Helper()
	in := AddCompetitorInput{Name: "Rival"}
	for _, u := range urls {
		in.Sources = append(in.Sources, domain.CompetitorSource{SourceType: "google", URL: u})
	}
	c, err := f.competitors.AddCompetitor(context.Background(), in)
	require.NoError(t, err)
	return c
}

func TestRefreshCompetitor_WeightedAverage(t *testing.T) {
	f := newFixture(t)
	c := addRival(t, f, "https://a.example.com", "https://b.example.com")

	f.provider.On("FetchCompetitorStats", mock.Anything, "https://a.example.com").
		Return(domain.CompetitorStats{AverageRating: 4.0, TotalReviews: 100}, nil)
	f.provider.On("FetchCompetitorStats", mock.Anything, "https://b.example.com").
		Return(domain.CompetitorStats{AverageRating: 5.0, TotalReviews: 300}, nil)

	refreshed, err := f.competitors.RefreshCompetitor(context.Background(), c.ID)
	require.NoError(t, err)

	require.NotNil(t, refreshed.AverageRating)
	assert.InDelta(t, 4.75, *refreshed.AverageRating, 1e-9)
	assert.Equal(t, 400, *refreshed.TotalReviews)
	assert.Equal(t, baseTime, *refreshed.LastUpdated)

	stored, err := f.competitors.GetCompetitor(context.Background(), c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.75, *stored.AverageRating, 1e-9)
	assert.Contains(t, f.events.Types(), "competitor.refreshed")
	f.provider.AssertExpectations(t)
}

func TestRefreshCompetitor_FailureKeepsStats(t *testing.T) {
	f := newFixture(t)
	c := addRival(t, f, "https://a.example.com", "https://b.example.com")

	f.provider.On("FetchCompetitorStats", mock.Anything, "https://a.example.com").
		Return(domain.CompetitorStats{AverageRating: 4.0, TotalReviews: 100}, nil)
	f.provider.On("FetchCompetitorStats", mock.Anything, "https://b.example.com").
		Return(domain.CompetitorStats{}, errors.New("connection reset"))

	_, err := f.competitors.RefreshCompetitor(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrProvider))
	assert.True(t, apperrors.IsRetryable(err))

	stored, err := f.competitors.GetCompetitor(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AverageRating)
	assert.Nil(t, stored.LastUpdated)
	assert.Empty(t, f.events.Types())
}

func TestCombineStats(t *testing.T) {
	assert.Equal(t, domain.CompetitorStats{}, combineStats(nil))

	plain := combineStats([]domain.CompetitorStats{{AverageRating: 4}, {AverageRating: 3}})
	assert.InDelta(t, 3.5, plain.AverageRating, 1e-9)
	assert.Equal(t, 0, plain.TotalReviews)
}

func TestCompare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.addSource(t, "downtown")
	f.ingest(t, src.ID, ext("r1", 5, 1, "", nil), ext("r2", 3, 2, "", nil))
	c := addRival(t, f, "https://a.example.com")

	before, err := f.competitors.Compare(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, before.Rating.Own)
	assert.Nil(t, before.Rating.Competitor)
	assert.Nil(t, before.Rating.Ratio)
	assert.Equal(t, 0.0, before.Rating.Display)
	assert.Nil(t, before.LastUpdated)

	f.provider.On("FetchCompetitorStats", mock.Anything, "https://a.example.com").
		Return(domain.CompetitorStats{AverageRating: 4.5, TotalReviews: 10}, nil)
	_, err = f.competitors.RefreshCompetitor(ctx, c.ID)
	require.NoError(t, err)

	after, err := f.competitors.Compare(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, after.Rating.Ratio)
	assert.InDelta(t, 112.5, *after.Rating.Ratio, 1e-9)
	assert.Equal(t, 100.0, after.Rating.Display)
	require.NotNil(t, after.Volume.Ratio)
	assert.InDelta(t, 500.0, *after.Volume.Ratio, 1e-9)
	assert.Equal(t, 2.0, after.Volume.Own)
	assert.Equal(t, "Rival", after.CompetitorName)
}

func TestCompare_NoOwnReviews(t *testing.T) {
	f := newFixture(t)
	c := addRival(t, f, "https://a.example.com")
	f.provider.On("FetchCompetitorStats", mock.Anything, "https://a.example.com").
		Return(domain.CompetitorStats{AverageRating: 4.5, TotalReviews: 10}, nil)
	_, err := f.competitors.RefreshCompetitor(context.Background(), c.ID)
	require.NoError(t, err)

	cmp, err := f.competitors.Compare(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Nil(t, cmp.Rating.Ratio)
	assert.Equal(t, 0.0, cmp.Rating.Display)
}

func TestDeleteCompetitor(t *testing.T) {
	f := newFixture(t)
	c := addRival(t, f, "https://a.example.com")

	require.NoError(t, f.competitors.DeleteCompetitor(context.Background(), c.ID))
	_, err := f.competitors.GetCompetitor(context.Background(), c.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.True(t, errors.Is(f.competitors.DeleteCompetitor(context.Background(), c.ID), apperrors.ErrNotFound))

	_, err = f.competitors.RefreshCompetitor(context.Background(), c.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
