package session

import (
	"context"
	"log/slog"
	"time"

	"wdf-server/internal/platform/metrics"
)

// Reaper periodically deletes sessions that stopped pinging.
type Reaper struct {
	store      Store
	inactivity time.Duration
	interval   time.Duration
	log        *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewReaper returns a Reaper that removes sessions idle for longer than
// inactivity, checking every interval.
func NewReaper(store Store, inactivity, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Reaper {
	return &Reaper{
		store:      store,
		inactivity: inactivity,
		interval:   interval,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// Run reaps until ctx is cancelled. Failures are logged and the loop continues.
func (r *Reaper) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = r.ReapOnce(ctx)
		}
	}
}

// ReapOnce deletes the inactive sessions once and returns how many were removed.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	n, err := r.store.DeleteInactive(ctx, r.now().Add(-r.inactivity))
	if err != nil {
		r.log.Error("reap sessions failed", slog.String("error", err.Error()))
		return 0, err
	}
	if n > 0 {
		r.metrics.AddSessionsReaped(n)
		r.log.Info("reaped inactive sessions", slog.Int("count", n))
	}
	return n, nil
}
