package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs SyncDue on a cron schedule. A pass still running when the
// next tick fires makes that tick a no-op.
type Scheduler struct {
	cron   *cron.Cron
	sync   *SyncService
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler for spec, a standard five-field cron
// expression or a descriptor such as "@every 15m".
func NewScheduler(spec string, sync *SyncService, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		sync:   sync,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("parse sync schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce performs one sync pass.
func (s *Scheduler) RunOnce() {
	ctx := context.Background()
	if _, err := s.sync.SyncDue(ctx, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "sync pass failed", slog.String("error", err.Error()))
	}
}

// Start begins running scheduled passes in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("sync scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for a running pass until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("sync scheduler stop timed out")
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
