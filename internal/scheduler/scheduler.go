package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Refresher refreshes a batch of urls. *pipeline.Pipeline satisfies it.
type Refresher interface {
	RefreshAll(ctx context.Context, urls []string, limit int) error
}

// Scheduler refreshes a fixed list of watched urls on an interval.
type Scheduler struct {
	refresher Refresher
	urls      []string
	interval  time.Duration
	limit     int
	stop      chan struct{}
}

func New(r Refresher, urls []string, interval time.Duration, limit int) *Scheduler {
	return &Scheduler{
		refresher: r,
		urls:      urls,
		interval:  interval,
		limit:     limit,
		stop:      make(chan struct{}),
	}
}

// RunOnce refreshes every watched url once.
func (s *Scheduler) RunOnce(ctx context.Context) {
	slog.Info("scheduler: refreshing watched urls", "count", len(s.urls))
	if err := s.refresher.RefreshAll(ctx, s.urls, s.limit); err != nil {
		slog.Error("scheduler: refresh failed", "error", err)
	}
}

// Start begins the periodic refreshes. Blocks until Stop is called or ctx
// is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("scheduler started", "interval", s.interval, "urls", len(s.urls))

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stop:
			slog.Info("scheduler stopped")
			return
		case <-ctx.Done():
			slog.Info("scheduler context cancelled")
			return
		}
	}
}

// Stop signals the scheduler to stop.
func (s *Scheduler) Stop() {
	close(s.stop)
}
