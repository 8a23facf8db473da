// Package scheduler triggers periodic fetch pipeline runs.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"murrasil/internal/model"
	"murrasil/internal/pipeline"
	"murrasil/internal/storage"
)

// Runner is one fetch pipeline invocation.
type Runner interface {
	Run(ctx context.Context) (int, error)
}

// Scheduler invokes the fetch pipeline at a configurable interval. The
// interval starts from static config and is re-read from the settings table
// after every run, so a stored fetch_interval_minutes override takes effect
// after the current wait period.
type Scheduler struct {
	store  storage.Storage
	runner Runner
	log    *slog.Logger
	tick   time.Duration
}

// New creates a Scheduler with the given default interval.
func New(store storage.Storage, runner Runner, log *slog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:  store,
		runner: runner,
		log:    log,
		tick:   interval,
	}
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
// An initial fetch runs immediately on start.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	interval := s.effectiveInterval(ctx)
	s.log.Info("scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
			if next := s.effectiveInterval(ctx); next != interval {
				s.log.Info("fetch interval changed", "old", interval, "new", next)
				interval = next
				ticker.Reset(next)
			}
		}
	}
}

// runOnce triggers one pipeline run. Overlap with a still-running pass (for
// example a manual fetch via the API) makes the tick a logged no-op.
func (s *Scheduler) runOnce(ctx context.Context) {
	count, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.log.Warn("skipping tick, previous run still in progress")
	case err != nil:
		s.log.Error("scheduled fetch failed", "error", err)
	default:
		s.log.Info("scheduled fetch completed", "inserted", count)
	}
}

// effectiveInterval resolves the current interval: the stored
// fetch_interval_minutes setting when present and valid, else the configured
// default.
func (s *Scheduler) effectiveInterval(ctx context.Context) time.Duration {
	settings, err := s.store.AllSettings(ctx)
	if err != nil {
		s.log.Error("read settings", "error", err)
		return s.tick
	}
	raw, ok := settings[model.SettingFetchInterval]
	if !ok {
		return s.tick
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		s.log.Warn("ignoring invalid fetch interval setting", "value", raw)
		return s.tick
	}
	return time.Duration(minutes) * time.Minute
}
