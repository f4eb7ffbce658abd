package drops

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/clock"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
)

// Jobs is what the scheduler triggers; *Service satisfies it.
type Jobs interface {
	RunWeeklyDropJob(ctx context.Context) (JobResult, error)
	RunExpiryCleanup(ctx context.Context) (int64, error)
}

type ScheduleConfig struct {
	Weekday         time.Weekday
	Hour            int
	CleanupInterval time.Duration
}

// Scheduler fires the weekly job on Weekday at Hour:00 UTC and the expiry
// cleanup every CleanupInterval.
type Scheduler struct {
	jobs  Jobs
	cfg   ScheduleConfig
	clock clock.Clock
	log   *slog.Logger
	wg    sync.WaitGroup
}

func NewScheduler(jobs Jobs, cfg ScheduleConfig, clk clock.Clock) *Scheduler {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &Scheduler{jobs: jobs, cfg: cfg, clock: clk, log: logger.Named("drops.scheduler")}
}

// Start launches both loops. They stop when ctx is done; Wait blocks
// until they have.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runWeekly(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.runInterval(ctx)
	}()
	s.log.Info("drop scheduler started",
		"weekday", s.cfg.Weekday, "hour_utc", s.cfg.Hour, "cleanup_interval", s.cfg.CleanupInterval)
}

func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) runWeekly(ctx context.Context) {
	for {
		now := s.clock.Now()
		next := NextWeekly(now, s.cfg.Weekday, s.cfg.Hour)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			res, err := s.jobs.RunWeeklyDropJob(ctx)
			switch {
			case errors.Is(err, ErrJobInProgress):
				s.log.Info("weekly drop job skipped, another instance holds the lock")
			case err != nil:
				s.log.Error("weekly drop job failed", "err", err, "processed", res.Processed, "failed", res.Failed)
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) runInterval(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.jobs.RunExpiryCleanup(ctx); err != nil {
				s.log.Error("drop cleanup failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// NextWeekly returns the first weekday at hour:00 UTC strictly after now.
func NextWeekly(now time.Time, weekday time.Weekday, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
