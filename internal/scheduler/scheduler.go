package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/g6/pkg/logger"
)

// TickFunc runs one cycle for the given cycle number and wall-clock time.
type TickFunc func(ctx context.Context, cycle int64, now time.Time)

// Scheduler is the fixed-interval loop described in spec §4.1: a single
// ticker at Config.Interval, stopping after MaxCycles if configured,
// with graceful Stop() waiting for the in-flight cycle to finish. The
// Start/Stop/stop-channel/WaitGroup shape mirrors the teacher's
// internal/queue.Scheduler, collapsed to the one fixed-interval tick
// this spec calls for instead of the teacher's many independent
// calendar-based tickers.
type Scheduler struct {
	cfg  Config
	tick TickFunc
	log  zerolog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
	cycle   int64
}

// NewScheduler builds a Scheduler that invokes tick once per Config.Interval.
func NewScheduler(cfg Config, tick TickFunc, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		tick: tick,
		log:  logger.Component(log, "scheduler.Scheduler"),
		stop: make(chan struct{}),
	}
}

// Start begins ticking. It returns immediately; the loop runs in a
// background goroutine until Stop is called, the context is canceled,
// or MaxCycles is reached.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.Interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("scheduler stopping: context canceled")
				return
			case <-s.stop:
				s.log.Info().Msg("scheduler stopping: Stop called")
				return
			case now := <-ticker.C:
				s.mu.Lock()
				s.cycle++
				cycle := s.cycle
				maxCycles := s.cfg.MaxCycles
				s.mu.Unlock()

				s.tick(ctx, cycle, now)

				if maxCycles > 0 && cycle >= int64(maxCycles) {
					s.log.Info().Int64("cycle", cycle).Msg("max_cycles reached, stopping")
					return
				}
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the current tick (if any)
// to finish before returning, per spec §4.1's shutdown semantics:
// "current cycle completes ... then process exits".
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}

// CurrentCycle returns the most recently started cycle number.
func (s *Scheduler) CurrentCycle() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}
