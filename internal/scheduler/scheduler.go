// Package scheduler runs the relay's periodic maintenance: expiring stale
// upload sessions and evicting idle cache entries.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// SessionExpirer drops a persisted upload session once it is past TTL.
type SessionExpirer interface {
	ExpireStale() bool
}

// CacheEvicter drops cached content idle for longer than maxIdle and
// reports how many entries went.
type CacheEvicter interface {
	EvictIdle(maxIdle time.Duration) int
}

type Scheduler struct {
	sessions SessionExpirer
	caches   CacheEvicter
	interval time.Duration
	maxIdle  time.Duration
}

func New(sessions SessionExpirer, caches CacheEvicter, interval, maxIdle time.Duration) *Scheduler {
	return &Scheduler{
		sessions: sessions,
		caches:   caches,
		interval: interval,
		maxIdle:  maxIdle,
	}
}

// Start launches the maintenance loop. It runs once immediately, then on
// every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("maintenance scheduler started",
		slog.Duration("interval", s.interval),
		slog.Duration("cache_max_idle", s.maxIdle),
	)
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			slog.Info("maintenance scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) sweep() {
	if s.sessions.ExpireStale() {
		slog.Info("stale upload session expired")
	}

	if evicted := s.caches.EvictIdle(s.maxIdle); evicted > 0 {
		slog.Info("idle cache entries evicted", slog.Int("evicted", evicted))
	}
}
