package engine

import (
	"context"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/cratewatch/cratewatch/internal/advisory"
	"github.com/cratewatch/cratewatch/internal/clock"
	"github.com/cratewatch/cratewatch/internal/config"
	"github.com/cratewatch/cratewatch/internal/logging"
	"github.com/cratewatch/cratewatch/internal/metrics"
	"github.com/cratewatch/cratewatch/internal/store"
)

// Mirror is the scheduler's view of the index mirror: fetchable, and
// readable by ingestion.
type Mirror interface {
	Fetch(ctx context.Context) error
	store.Index
}

// Ingester ingests from a mirror into the package store.
type Ingester interface {
	Ingest(idx store.Index, log *logging.Logger) error
}

// Scheduler drives the periodic refresh: mirror fetch, store
// ingestion, advisory reload, strictly in that order. Phases fail
// independently; a tick is never skipped because the prior one failed.
type Scheduler struct {
	mirror     Mirror
	packages   Ingester
	advisories *advisory.Holder
	advFetcher advisory.Fetcher
	cfg        *config.Config
	log        *logging.Logger
	clock      clock.Clock
	resetCh    chan struct{}
	lastTick   time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(m Mirror, p Ingester, adv *advisory.Holder, advFetcher advisory.Fetcher, cfg *config.Config, log *logging.Logger, clk clock.Clock) *Scheduler {
	return &Scheduler{
		mirror:     m,
		packages:   p,
		advisories: adv,
		advFetcher: advFetcher,
		cfg:        cfg,
		log:        log,
		clock:      clk,
		resetCh:    make(chan struct{}, 1),
	}
}

// Run performs one tick synchronously to seed state, then ticks at
// every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("starting initial refresh")
	s.Tick(ctx)

	for {
		wait := s.nextWait()
		s.log.Debug("next refresh scheduled", "after", wait)
		select {
		case <-s.clock.After(wait):
			s.Tick(ctx)
		case <-s.resetCh:
			s.log.Info("refresh schedule changed, resetting timer")
		case <-ctx.Done():
			s.log.Info("refresh scheduler stopped")
			return nil
		}
	}
}

// nextWait computes the sleep until the next tick: the cron schedule
// when one is configured, the plain interval otherwise.
func (s *Scheduler) nextWait() time.Duration {
	if expr := s.cfg.Schedule(); expr != "" {
		if sched, err := cron.ParseStandard(expr); err == nil {
			now := s.clock.Now()
			return sched.Next(now).Sub(now)
		}
		s.log.Warn("invalid cron schedule, falling back to interval", "schedule", expr)
	}
	return s.cfg.RefreshInterval()
}

// Tick runs one refresh cycle. Each phase logs and absorbs its own
// failure: a stale mirror is still ingestable, and a failed advisory
// load leaves the previous snapshot in place.
func (s *Scheduler) Tick(ctx context.Context) {
	metrics.RefreshTotal.Inc()

	begin := s.clock.Now()
	if err := s.mirror.Fetch(ctx); err != nil {
		metrics.RefreshErrors.WithLabelValues("fetch").Inc()
		s.log.Error("failed to fetch index", "error", err)
	} else {
		s.log.Debug("fetched index", "took", s.clock.Since(begin))
	}
	metrics.RefreshPhaseDuration.WithLabelValues("fetch").Observe(s.clock.Since(begin).Seconds())

	begin = s.clock.Now()
	if err := s.packages.Ingest(s.mirror, s.log); err != nil {
		metrics.RefreshErrors.WithLabelValues("ingest").Inc()
		s.log.Error("failed to ingest index", "error", err)
	} else {
		s.log.Debug("ingested index", "took", s.clock.Since(begin))
	}
	metrics.RefreshPhaseDuration.WithLabelValues("ingest").Observe(s.clock.Since(begin).Seconds())

	begin = s.clock.Now()
	if db, err := advisory.Load(ctx, s.advFetcher); err != nil {
		metrics.RefreshErrors.WithLabelValues("advisories").Inc()
		s.log.Error("failed to reload advisory database", "error", err)
	} else {
		s.advisories.Swap(db)
		metrics.AdvisoryCount.Set(float64(db.Count()))
		s.log.Debug("reloaded advisory database", "advisories", db.Count(), "took", s.clock.Since(begin))
	}
	metrics.RefreshPhaseDuration.WithLabelValues("advisories").Observe(s.clock.Since(begin).Seconds())

	s.lastTick = s.clock.Now()
}

// SetRefreshInterval updates the interval at runtime and resets the
// timer.
func (s *Scheduler) SetRefreshInterval(d time.Duration) {
	s.cfg.SetRefreshInterval(d)
	s.log.Info("refresh interval updated", "interval", d)
	select {
	case s.resetCh <- struct{}{}:
	default:
	}
}

// LastTickTime returns when the last tick completed.
func (s *Scheduler) LastTickTime() time.Time {
	return s.lastTick
}
