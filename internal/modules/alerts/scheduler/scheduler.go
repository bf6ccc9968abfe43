// Package scheduler runs the periodic alert sweep and history retention jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gameguyr/tempest/internal/logging"
	"github.com/gameguyr/tempest/internal/metrics"
	weathertypes "github.com/gameguyr/tempest/internal/modules/weather/types"
)

const (
	jobSweep   = "sweep"
	jobCleanup = "cleanup"
)

// ErrSweepRunning is returned when a sweep is requested while one is in flight.
var ErrSweepRunning = errors.New("sweep already running")

type Config struct {
	SweepSchedule   string
	SweepWindow     time.Duration
	CleanupSchedule string
	Retention       time.Duration
}

type ReadingSource interface {
	GetReadingsSince(ctx context.Context, since time.Time) ([]weathertypes.Reading, error)
}

type ReadingEvaluator interface {
	EvaluateReading(ctx context.Context, reading weathertypes.Reading) error
}

type HistoryPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Scheduler struct {
	cfg       Config
	readings  ReadingSource
	evaluator ReadingEvaluator
	history   HistoryPruner
	logger    *slog.Logger
	now       func() time.Time

	cron    *cron.Cron
	sweepMu sync.Mutex

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, readings ReadingSource, evaluator ReadingEvaluator, history HistoryPruner, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	cl := logging.CronLogger(logger)
	s := &Scheduler{
		cfg:       cfg,
		readings:  readings,
		evaluator: evaluator,
		history:   history,
		logger:    logger,
		now:       time.Now,
		ctx:       context.Background(),
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	if _, err := s.cron.AddFunc(cfg.SweepSchedule, s.runSweep); err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", cfg.SweepSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.CleanupSchedule, s.runCleanup); err != nil {
		return nil, fmt.Errorf("schedule cleanup %q: %w", cfg.CleanupSchedule, err)
	}
	return s, nil
}

// Start runs the jobs in the background until Stop or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started",
		"sweep", s.cfg.SweepSchedule,
		"sweep_window", s.cfg.SweepWindow,
		"cleanup", s.cfg.CleanupSchedule,
		"retention", s.cfg.Retention,
	)
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) runSweep() {
	s.track(jobSweep, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	})
}

func (s *Scheduler) runCleanup() {
	s.track(jobCleanup, func(ctx context.Context) error {
		_, err := s.Cleanup(ctx)
		return err
	})
}

func (s *Scheduler) track(job string, fn func(ctx context.Context) error) {
	start := time.Now()
	err := fn(s.jobContext())
	metrics.JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrSweepRunning):
		metrics.JobRunsTotal.WithLabelValues(job, "skipped").Inc()
		s.logger.Warn("job skipped", "job", job, "reason", err)
	case err != nil:
		metrics.JobRunsTotal.WithLabelValues(job, "error").Inc()
		s.logger.Error("job failed", "job", job, "error", err)
	default:
		metrics.JobRunsTotal.WithLabelValues(job, "ok").Inc()
	}
}

// Sweep re-evaluates the latest reading of every station heard from inside
// the sweep window. It returns the number of stations evaluated.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	if !s.sweepMu.TryLock() {
		return 0, ErrSweepRunning
	}
	defer s.sweepMu.Unlock()

	since := s.now().UTC().Add(-s.cfg.SweepWindow)
	readings, err := s.readings.GetReadingsSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("load readings since %s: %w", since.Format(time.RFC3339), err)
	}

	latest := LatestPerStation(readings)
	var errs []error
	for _, r := range latest {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.evaluator.EvaluateReading(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("station %q: %w", r.StationID, err))
		}
	}

	s.logger.Debug("sweep finished", "readings", len(readings), "stations", len(latest), "errors", len(errs))
	return len(latest), errors.Join(errs...)
}

// Cleanup deletes history older than the retention period.
func (s *Scheduler) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.cfg.Retention)
	n, err := s.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete history before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	metrics.HistoryRowsDeletedTotal.Add(float64(n))
	s.logger.Info("history cleanup finished", "deleted", n, "cutoff", cutoff)
	return n, nil
}

// LatestPerStation keeps the newest reading of each station, in order of
// first appearance.
func LatestPerStation(readings []weathertypes.Reading) []weathertypes.Reading {
	index := make(map[string]int, len(readings))
	var out []weathertypes.Reading
	for _, r := range readings {
		i, seen := index[r.StationID]
		if !seen {
			index[r.StationID] = len(out)
			out = append(out, r)
			continue
		}
		if r.Timestamp.After(out[i].Timestamp) || (r.Timestamp.Equal(out[i].Timestamp) && r.ID > out[i].ID) {
			out[i] = r
		}
	}
	return out
}
