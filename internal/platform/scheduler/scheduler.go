package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wdf-server/internal/platform/metrics"
)

// Job is the body of a scheduled action. It runs with no caller context.
type Job func(ctx context.Context) error

// Scheduler runs one-shot jobs at an absolute wall-clock time.
type Scheduler interface {
	Schedule(description string, at time.Time, job Job)
}

// TimerScheduler is an in-process Scheduler. Pending jobs live only for the
// lifetime of the process; a restart drops them.
type TimerScheduler struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timers  map[*time.Timer]struct{}
	wg      sync.WaitGroup
	stopped bool
}

// New returns a running TimerScheduler. m may be nil.
func New(log *slog.Logger, m *metrics.Metrics) *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		log:     log,
		metrics: m,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[*time.Timer]struct{}),
	}
}

// Schedule arranges for job to run once at or after at. Times in the past
// fire immediately. Calls after Stop are dropped.
func (s *TimerScheduler) Schedule(description string, at time.Time, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.log.Warn("scheduler stopped, dropping job", slog.String("job", description))
		return
	}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	var t *time.Timer
	s.wg.Add(1)
	t = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		s.run(description, job)
	})
	s.timers[t] = struct{}{}

	s.log.Debug("job scheduled",
		slog.String("job", description),
		slog.Time("at", at),
		slog.Int64("delay_ms", delay.Milliseconds()))
}

// Pending returns the number of jobs that have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending job and waits for running ones to finish or for
// ctx to expire.
func (s *TimerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, t)
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes job, containing both returned errors and panics so that one
// failing job never affects other scheduled jobs.
func (s *TimerScheduler) run(description string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.IncJobFailures(description)
			s.log.Error("scheduled job panicked",
				slog.String("job", description),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()

	start := s.now()
	if err := job(s.ctx); err != nil {
		s.metrics.IncJobFailures(description)
		s.log.Error("scheduled job failed",
			slog.String("job", description),
			slog.String("error", err.Error()))
		return
	}
	s.log.Debug("scheduled job done",
		slog.String("job", description),
		slog.Int64("duration_ms", s.now().Sub(start).Milliseconds()))
}
