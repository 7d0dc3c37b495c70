// Package scheduler moves tournaments through their lifecycle on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Dosada05/tournament-manager/metrics"
)

const defaultRunTimeout = 25 * time.Second

// StatusUpdater is implemented by services.TournamentService.
type StatusUpdater interface {
	AutoUpdateStatusesByDates(ctx context.Context, now time.Time) error
}

type StatusScheduler struct {
	cron    *cron.Cron
	updater StatusUpdater
	logger  *slog.Logger
	spec    string
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	baseCtx context.Context
}

func NewStatusScheduler(spec string, updater StatusUpdater, logger *slog.Logger) (*StatusScheduler, error) {
	cronLogger := slogCronLogger{logger: logger}
	s := &StatusScheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		updater: updater,
		logger:  logger,
		spec:    spec,
		timeout: defaultRunTimeout,
		now:     time.Now,
		baseCtx: context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid status schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs one update immediately and then follows the schedule until
// Stop is called or ctx is done.
func (s *StatusScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.logger.Info("Tournament status scheduler started", slog.String("schedule", s.spec))
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Scheduler: initial run failed", slog.Any("error", err))
	}
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop prevents new runs and waits for a running one to finish.
func (s *StatusScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *StatusScheduler) tick() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Scheduler: periodic run failed", slog.Any("error", err))
	}
}

func (s *StatusScheduler) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	err := s.updater.AutoUpdateStatusesByDates(runCtx, s.now())
	elapsed := time.Since(started)
	metrics.RecordSchedulerRun(elapsed, err == nil)

	s.logger.Debug("Scheduler: status update finished", slog.Duration("took", elapsed), slog.Bool("ok", err == nil))
	return err
}

// slogCronLogger пробрасывает логи cron в slog.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
