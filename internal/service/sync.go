package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/provider"
	"github.com/utafrali/ReputationGo/internal/repository"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

// ErrSyncInProgress is returned when another instance holds the sync lock
// for a source.
var ErrSyncInProgress = apperrors.Conflict("a sync of this source is already running")

const defaultSyncFlightTimeout = 5 * time.Minute

// SyncResult describes one source sync.
type SyncResult struct {
	SourceID string     `json:"source_id"`
	Name     string     `json:"name"`
	Fetched  int        `json:"fetched"`
	Created  int        `json:"created"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// SyncReport summarizes a SyncDue pass.
type SyncReport struct {
	StartedAt time.Time    `json:"started_at"`
	Synced    int          `json:"synced"`
	Failed    int          `json:"failed"`
	Busy      int          `json:"busy"`
	Results   []SyncResult `json:"results"`
}

// SyncService pulls reviews from the provider into the review store.
// Overlapping syncs of one source are collapsed in-process and excluded
// across instances through the Locker.
type SyncService struct {
	sources  repository.SourceRepository
	reviews  *ReviewService
	provider provider.Provider
	locker   repository.Locker
	events   EventPublisher
	logger   *slog.Logger
	lockTTL  time.Duration
	now      func() time.Time
	group    singleflight.Group
}

// NewSyncService creates a new sync service.
func NewSyncService(
	sources repository.SourceRepository,
	reviews *ReviewService,
	p provider.Provider,
	locker repository.Locker,
	events EventPublisher,
	logger *slog.Logger,
	lockTTL time.Duration,
) *SyncService {
	return &SyncService{
		sources:  sources,
		reviews:  reviews,
		provider: p,
		locker:   locker,
		events:   events,
		logger:   logger,
		lockTTL:  lockTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SyncSource fetches and ingests the reviews of one enabled source. On
// success LastSyncTime is set to the completion time. A provider failure
// marks the source failed, keeps LastSyncTime and returns a ProviderFailure.
func (s *SyncService) SyncSource(ctx context.Context, id string) (*SyncResult, error) {
	src, err := s.sources.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sync source: %w", err)
	}
	if !src.Enabled {
		return nil, apperrors.InvalidInput("source " + id + " is disabled")
	}

	// Joined callers share the flight. It outlives the first caller's
	// context and is bounded by the lock TTL.
	v, err, shared := s.group.Do(id, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout())
		defer cancel()
		return s.syncLocked(flightCtx, src)
	})
	if shared {
		s.logger.DebugContext(ctx, "joined in-flight sync", slog.String("source_id", id))
	}
	if err != nil {
		return nil, err
	}
	res := *v.(*SyncResult)
	return &res, nil
}

func (s *SyncService) flightTimeout() time.Duration {
	if s.lockTTL > 0 {
		return s.lockTTL
	}
	return defaultSyncFlightTimeout
}

// SyncDue syncs every enabled source whose next sync is due at now. A failed
// source is logged and recorded in the report; the pass continues.
func (s *SyncService) SyncDue(ctx context.Context, now time.Time) (*SyncReport, error) {
	sources, err := s.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync due sources: %w", err)
	}
	SortByNextDue(sources)

	report := &SyncReport{StartedAt: now, Results: []SyncResult{}}
	for i := range sources {
		src := &sources[i]
		if !src.IsDue(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := s.SyncSource(ctx, src.ID)
		switch {
		case err == nil:
			report.Synced++
			report.Results = append(report.Results, *res)
		case errors.Is(err, ErrSyncInProgress):
			report.Busy++
		default:
			report.Failed++
			report.Results = append(report.Results, SyncResult{SourceID: src.ID, Name: src.Name, Error: err.Error()})
			s.logger.WarnContext(ctx, "scheduled sync failed",
				slog.String("source_id", src.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "sync pass finished",
		slog.Int("synced", report.Synced),
		slog.Int("failed", report.Failed),
		slog.Int("busy", report.Busy),
	)
	return report, nil
}

func (s *SyncService) syncLocked(ctx context.Context, src *domain.ReviewSource) (*SyncResult, error) {
	release, ok, err := s.locker.TryLock(ctx, "sync:"+src.ID, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		syncRuns.WithLabelValues(src.Platform, "busy").Inc()
		return nil, ErrSyncInProgress
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "release sync lock", slog.String("source_id", src.ID), slog.String("error", err.Error()))
		}
	}()

	start := time.Now()
	defer func() { syncDuration.WithLabelValues(src.Platform).Observe(time.Since(start).Seconds()) }()

	fetched, err := s.provider.FetchReviews(ctx, *src)
	if err != nil {
		if !errors.Is(err, apperrors.ErrProvider) {
			err = apperrors.ProviderFailure(s.provider.Name(), err)
		}
		s.recordFailure(ctx, src, err)
		return nil, err
	}

	ing, err := s.reviews.Ingest(ctx, src.ID, fetched)
	if err != nil {
		s.recordFailure(ctx, src, err)
		return nil, fmt.Errorf("sync source: %w", err)
	}

	completed := s.now()
	updated, err := s.recordOutcome(ctx, src.ID, func(cur *domain.ReviewSource) {
		cur.LastSyncTime = &completed
		cur.LastSyncStatus = domain.SyncStatusOK
		cur.LastSyncError = ""
	})
	if err != nil {
		return nil, fmt.Errorf("sync source: %w", err)
	}
	syncRuns.WithLabelValues(src.Platform, "ok").Inc()

	if err := s.events.PublishSourceSynced(ctx, updated, len(fetched), ing.Created, ing.Updated); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish source.synced event",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "source synced",
		slog.String("source_id", src.ID),
		slog.Int("fetched", len(fetched)),
		slog.Int("created", ing.Created),
		slog.Int("updated", ing.Updated),
	)

	return &SyncResult{
		SourceID: src.ID,
		Name:     src.Name,
		Fetched:  len(fetched),
		Created:  ing.Created,
		Updated:  ing.Updated,
		Skipped:  ing.Skipped,
		SyncedAt: &completed,
	}, nil
}

func (s *SyncService) recordFailure(ctx context.Context, src *domain.ReviewSource, syncErr error) {
	syncRuns.WithLabelValues(src.Platform, "failed").Inc()
	s.logger.ErrorContext(ctx, "source sync failed",
		slog.String("source_id", src.ID),
		slog.String("error", syncErr.Error()),
	)

	updated, err := s.recordOutcome(ctx, src.ID, func(cur *domain.ReviewSource) {
		cur.LastSyncStatus = domain.SyncStatusFailed
		cur.LastSyncError = syncErr.Error()
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record sync failure",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.events.PublishSourceSyncFailed(ctx, updated, syncErr); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish source.sync_failed event",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
	}
}

// recordOutcome applies the sync fields to a fresh copy of the source so
// edits made during the sync are kept.
func (s *SyncService) recordOutcome(ctx context.Context, id string, apply func(*domain.ReviewSource)) (*domain.ReviewSource, error) {
	cur, err := s.sources.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(cur)
	cur.UpdatedAt = s.now()
	if err := s.sources.Update(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}
