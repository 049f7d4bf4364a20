package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/pipeline"
)

type fakeCalendar struct{ holiday bool }

func (f fakeCalendar) IsHoliday(index string, date time.Time) bool { return f.holiday }

func indices(symbols ...string) []*domain.IndexConfig {
	out := make([]*domain.IndexConfig, len(symbols))
	for i, s := range symbols {
		out[i] = &domain.IndexConfig{Symbol: s}
	}
	return out
}

// A known non-weekend, non-holiday reference instant.
var refNow = time.Date(2026, time.July, 27, 10, 0, 0, 0, time.UTC) // Monday

func TestRunCycleSkipsWhenMarketClosed(t *testing.T) {
	e := &CycleExecutor{
		Indices:  indices("NIFTY"),
		Calendar: fakeCalendar{holiday: true},
		Config:   Config{MarketHoursGating: true, Interval: time.Second, ParallelIndexWorkers: 1, CycleBudgetFraction: 1, SLAFraction: 1},
		Work: func(ctx context.Context, idx *domain.IndexConfig, now time.Time) *pipeline.IndexResult {
			t.Fatal("work should not run when market is closed")
			return nil
		},
		Log: zerolog.Nop(),
	}

	report := e.RunCycle(context.Background(), 1, refNow)
	assert.True(t, report.SkippedMarketClosed)
	assert.Empty(t, report.Results)
}

func TestRunCycleDispatchesAllIndicesWithinWorkerLimit(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32

	e := &CycleExecutor{
		Indices: indices("NIFTY", "BANKNIFTY", "FINNIFTY"),
		Config:  Config{Interval: time.Second, ParallelIndexWorkers: 2, CycleBudgetFraction: 1, SoftTimeoutFraction: 1, SLAFraction: 1},
		Work: func(ctx context.Context, idx *domain.IndexConfig, now time.Time) *pipeline.IndexResult {
			cur := atomic.AddInt32(&concurrent, 1)
			for {
				m := atomic.LoadInt32(&maxConcurrent)
				if cur <= m || atomic.CompareAndSwapInt32(&maxConcurrent, m, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			return &pipeline.IndexResult{Index: idx.Symbol}
		},
		Log: zerolog.Nop(),
	}

	report := e.RunCycle(context.Background(), 1, refNow)
	require.Len(t, report.Results, 3)
	assert.LessOrEqual(t, int(maxConcurrent), 2)
}

func TestRunCycleDetectsMissingCycle(t *testing.T) {
	e := &CycleExecutor{
		Indices: indices("NIFTY"),
		Config:  Config{Interval: time.Second, MissingCycleFactor: 2, ParallelIndexWorkers: 1, CycleBudgetFraction: 1, SoftTimeoutFraction: 1, SLAFraction: 1},
		Work: func(ctx context.Context, idx *domain.IndexConfig, now time.Time) *pipeline.IndexResult {
			return &pipeline.IndexResult{Index: idx.Symbol}
		},
		Log: zerolog.Nop(),
	}

	e.RunCycle(context.Background(), 1, refNow)
	report := e.RunCycle(context.Background(), 2, refNow.Add(5*time.Second))
	assert.True(t, report.MissingCycleDetected)
}

func TestRunCycleRecordsSLABreachWhenElapsedExceedsFraction(t *testing.T) {
	e := &CycleExecutor{
		Indices: indices("NIFTY"),
		Config:  Config{Interval: 20 * time.Millisecond, ParallelIndexWorkers: 1, CycleBudgetFraction: 1, SoftTimeoutFraction: 1, SLAFraction: 0.5},
		Work: func(ctx context.Context, idx *domain.IndexConfig, now time.Time) *pipeline.IndexResult {
			time.Sleep(15 * time.Millisecond)
			return &pipeline.IndexResult{Index: idx.Symbol}
		},
		Log: zerolog.Nop(),
	}

	report := e.RunCycle(context.Background(), 1, refNow)
	assert.True(t, report.SLABreached)
}

func TestRunIndexWithRetryRecoversAfterSoftTimeout(t *testing.T) {
	var attempts int32

	e := &CycleExecutor{
		Config: Config{SoftTimeoutFraction: 1, Interval: 10 * time.Millisecond, ParallelIndexRetry: 1},
		Work: func(ctx context.Context, idx *domain.IndexConfig, now time.Time) *pipeline.IndexResult {
			n := atomic.AddInt32(&attempts, 1)
			if n == 1 {
				<-ctx.Done() // first attempt always times out
				return &pipeline.IndexResult{Index: idx.Symbol, SpotErr: ctx.Err()}
			}
			return &pipeline.IndexResult{Index: idx.Symbol}
		},
		Log: zerolog.Nop(),
	}

	result, timedOut := e.runIndexWithRetry(context.Background(), &domain.IndexConfig{Symbol: "NIFTY"}, refNow)
	assert.False(t, timedOut)
	assert.Nil(t, result.SpotErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestRunCycleBudgetSkipsIndicesWhenDeadlineElapses(t *testing.T) {
	e := &CycleExecutor{
		Indices: indices("A", "B", "C"),
		Config:  Config{Interval: time.Second, ParallelIndexWorkers: 1, CycleBudgetFraction: 0.0001, SoftTimeoutFraction: 1, SLAFraction: 1},
		Work: func(ctx context.Context, idx *domain.IndexConfig, now time.Time) *pipeline.IndexResult {
			time.Sleep(20 * time.Millisecond)
			return &pipeline.IndexResult{Index: idx.Symbol}
		},
		Log: zerolog.Nop(),
	}

	report := e.RunCycle(context.Background(), 1, refNow)
	assert.NotEmpty(t, report.BudgetSkippedIndices)
}
