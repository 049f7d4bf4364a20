package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerStopsAfterMaxCycles(t *testing.T) {
	var ticks int32
	cfg := Config{Interval: 5 * time.Millisecond, MaxCycles: 3}

	s := NewScheduler(cfg, func(ctx context.Context, cycle int64, now time.Time) {
		atomic.AddInt32(&ticks, 1)
	}, zerolog.Nop())

	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&ticks) == 3
	}, time.Second, time.Millisecond)

	s.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&ticks))
}

func TestSchedulerStopWaitsForInFlightTick(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var completed int32

	cfg := Config{Interval: 5 * time.Millisecond}
	s := NewScheduler(cfg, func(ctx context.Context, cycle int64, now time.Time) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		atomic.StoreInt32(&completed, 1)
	}, zerolog.Nop())

	s.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before in-flight tick completed")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-stopped
	assert.Equal(t, int32(1), atomic.LoadInt32(&completed))
}

func TestSchedulerStopIsIdempotentWhenNotStarted(t *testing.T) {
	s := NewScheduler(Config{Interval: time.Second}, func(ctx context.Context, cycle int64, now time.Time) {}, zerolog.Nop())
	s.Stop() // must not panic or block
}

func TestSchedulerContextCancelStopsLoop(t *testing.T) {
	var ticks int32
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(Config{Interval: 5 * time.Millisecond}, func(ctx context.Context, cycle int64, now time.Time) {
		atomic.AddInt32(&ticks, 1)
	}, zerolog.Nop())

	s.Start(ctx)
	time.Sleep(12 * time.Millisecond)
	cancel()
	time.Sleep(15 * time.Millisecond)
	n := atomic.LoadInt32(&ticks)

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt32(&ticks), "no further ticks after context cancellation")
}
