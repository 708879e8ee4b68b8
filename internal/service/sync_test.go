package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ReputationGo/internal/domain"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

func TestSyncSource_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.addSource(t, "downtown")

	f.provider.On("FetchReviews", mock.Anything, src.ID).
		Run(func(mock.Arguments) { f.clock.Advance(5 * time.Minute) }).
		Return([]domain.ExternalReview{
			ext("g-1", 5, 1, "", nil),
			ext("g-2", 1, 2, "", nil),
			ext("", 3, 2, "", nil),
		}, nil)

	res, err := f.sync.SyncSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)

	completed := baseTime.Add(5 * time.Minute)
	require.NotNil(t, res.SyncedAt)
	assert.Equal(t, completed, *res.SyncedAt)

	stored, err := f.sources.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSyncTime)
	assert.Equal(t, completed, *stored.LastSyncTime)
	assert.Equal(t, domain.SyncStatusOK, stored.LastSyncStatus)

	assert.Equal(t, []string{"review.ingested", "source.synced"}, f.events.Types())

	_, ok, err := f.locker.TryLock(ctx, "sync:"+src.ID, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock must be released after the sync")
}

func TestSyncSource_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.addSource(t, "downtown")
	f.ingest(t, src.ID, ext("g-1", 4, 1, "", nil))

	f.provider.On("FetchReviews", mock.Anything, src.ID).Return(nil, errors.New("503 from upstream"))

	_, err := f.sync.SyncSource(ctx, src.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrProvider))

	stored, err := f.sources.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastSyncTime)
	assert.Equal(t, domain.SyncStatusFailed, stored.LastSyncStatus)
	assert.Contains(t, stored.LastSyncError, "503 from upstream")
	assert.Contains(t, f.events.Types(), "source.sync_failed")

	// The store stays queryable.
	got := f.reviewByExternal(t, "g-1")
	assert.Equal(t, 4, got.Rating)
}

func TestSyncSource_FailureKeepsPreviousSyncTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.addSource(t, "downtown")

	f.provider.On("FetchReviews", mock.Anything, src.ID).Return([]domain.ExternalReview{}, nil).Once()
	_, err := f.sync.SyncSource(ctx, src.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	f.provider.On("FetchReviews", mock.Anything, src.ID).Return(nil, errors.New("timeout")).Once()
	_, err = f.sync.SyncSource(ctx, src.ID)
	require.Error(t, err)

	stored, err := f.sources.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSyncTime)
	assert.Equal(t, baseTime, *stored.LastSyncTime)
	assert.Equal(t, domain.SyncStatusFailed, stored.LastSyncStatus)
}

func TestSyncSource_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sync.SyncSource(ctx, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	src := f.addSource(t, "downtown")
	disabled := false
	_, err = f.sources.UpdateSource(ctx, src.ID, UpdateSourceInput{Enabled: &disabled})
	require.NoError(t, err)

	_, err = f.sync.SyncSource(ctx, src.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	f.provider.AssertNotCalled(t, "FetchReviews", mock.Anything, mock.Anything)
}

func TestSyncSource_LockedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.addSource(t, "downtown")

	_, ok, err := f.locker.TryLock(ctx, "sync:"+src.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.sync.SyncSource(ctx, src.ID)
	assert.True(t, errors.Is(err, ErrSyncInProgress))
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	f.provider.AssertNotCalled(t, "FetchReviews", mock.Anything, mock.Anything)
}

func TestSyncSource_OverlappingCallsFetchOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.addSource(t, "downtown")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.provider.On("FetchReviews", mock.Anything, src.ID).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]domain.ExternalReview{ext("g-1", 5, 1, "", nil)}, nil).Once()

	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = f.sync.SyncSource(ctx, src.ID)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = f.sync.SyncSource(ctx, src.ID)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	if errs[1] != nil {
		assert.True(t, errors.Is(errs[1], ErrSyncInProgress))
	}
	f.provider.AssertNumberOfCalls(t, "FetchReviews", 1)
}

func TestSyncSource_FirstCallerCancelDoesNotFailJoinedCaller(t *testing.T) {
	f := newFixture(t)
	src := f.addSource(t, "downtown")

	entered := make(chan struct{})
	release := make(chan struct{})
	var fetchCtx context.Context
	f.provider.On("FetchReviews", mock.Anything, src.ID).
		Run(func(args mock.Arguments) {
			fetchCtx = args.Get(0).(context.Context)
			close(entered)
			<-release
		}).
		Return([]domain.ExternalReview{ext("g-1", 5, 1, "", nil)}, nil).Once()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	var (
		wg   sync.WaitGroup
		errs [2]error
		res  [2]*SyncResult
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res[0], errs[0] = f.sync.SyncSource(firstCtx, src.ID)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		res[1], errs[1] = f.sync.SyncSource(context.Background(), src.ID)
	}()
	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	require.NoError(t, fetchCtx.Err(), "shared sync must not see the first caller's cancellation")
	close(release)
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, 1, res[i].Created)
	}
	f.provider.AssertNumberOfCalls(t, "FetchReviews", 1)

	stored, err := f.sources.GetSource(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusOK, stored.LastSyncStatus)
}

func TestSyncDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := f.addSource(t, "due")
	failing := f.addSource(t, "failing")
	recent := f.addSource(t, "recent")
	ts := baseTime.Add(-time.Hour)
	recent.LastSyncTime = &ts
	require.NoError(t, f.sourceRepo.Update(ctx, recent))
	manual := f.addSource(t, "manual")
	manual.SyncFrequency = domain.SyncNever
	require.NoError(t, f.sourceRepo.Update(ctx, manual))
	off := f.addSource(t, "off")
	off.Enabled = false
	require.NoError(t, f.sourceRepo.Update(ctx, off))

	f.provider.On("FetchReviews", mock.Anything, due.ID).Return([]domain.ExternalReview{ext("g-1", 5, 1, "", nil)}, nil)
	f.provider.On("FetchReviews", mock.Anything, failing.ID).Return(nil, errors.New("boom")).Once()

	report, err := f.sync.SyncDue(ctx, baseTime)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Busy)
	require.Len(t, report.Results, 2)
	assert.Equal(t, due.ID, report.Results[0].SourceID)
	assert.Equal(t, failing.ID, report.Results[1].SourceID)
	assert.NotEmpty(t, report.Results[1].Error)

	f.provider.AssertNumberOfCalls(t, "FetchReviews", 2)

	// A second pass finds nothing new due except the failed source.
	f.provider.On("FetchReviews", mock.Anything, failing.ID).Return([]domain.ExternalReview{}, nil)
	report, err = f.sync.SyncDue(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 0, report.Failed)
}

func TestSyncDue_CountsBusySources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.addSource(t, "downtown")

	_, ok, err := f.locker.TryLock(ctx, "sync:"+src.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	report, err := f.sync.SyncDue(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Busy)
	assert.Equal(t, 0, report.Synced)
	assert.Empty(t, report.Results)
}

func TestScheduler(t *testing.T) {
	f := newFixture(t)
	src := f.addSource(t, "downtown")
	f.provider.On("FetchReviews", mock.Anything, src.ID).Return([]domain.ExternalReview{}, nil)

	_, err := NewScheduler("not a schedule", f.sync, newTestLogger())
	require.Error(t, err)

	sched, err := NewScheduler("@every 1h", f.sync, newTestLogger())
	require.NoError(t, err)
	sched.now = f.clock.Now

	sched.RunOnce()
	f.provider.AssertNumberOfCalls(t, "FetchReviews", 1)

	sched.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sched.Stop(ctx)
}
