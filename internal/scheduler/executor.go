// Package scheduler implements the fixed-interval collection loop and
// per-cycle concurrency/budget enforcement described in spec §4.1 and
// §5, grounded on the teacher's internal/queue.Scheduler ticker/stop-
// channel/WaitGroup idiom.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/holiday"
	"github.com/aristath/g6/internal/metrics"
	"github.com/aristath/g6/internal/pipeline"
	"github.com/aristath/g6/pkg/logger"
)

// IndexWorkFunc runs one index's pipeline for the given cycle time.
type IndexWorkFunc func(ctx context.Context, idx *domain.IndexConfig, now time.Time) *pipeline.IndexResult

// CycleReport summarizes one cycle's outcome for logging/panels/events.
type CycleReport struct {
	Cycle               int64
	Now                 time.Time
	SkippedMarketClosed bool
	Elapsed             time.Duration
	Results             []*pipeline.IndexResult
	BudgetSkippedIndices []string
	TimedOutIndices      []string
	SLABreached          bool
	MissingCycleDetected bool
	DataGapSeconds       float64
}

// CycleExecutor dispatches one goroutine per index, bounded by
// ParallelIndexWorkers, enforcing the cycle budget, per-index soft
// timeout with bounded serial retry, and SLA-breach detection (spec
// §4.1, §5). The teacher's queue.Manager/worker-pool semaphore pattern
// is the concurrency-bounding idiom this is grounded on.
type CycleExecutor struct {
	Indices          []*domain.IndexConfig
	Work             IndexWorkFunc
	Calendar         holiday.Calendar
	MarketCalendarIndex string // which index's holiday calendar gates the whole cycle
	MarketOpen       time.Duration // offset from midnight IST
	MarketClose      time.Duration
	Config           Config
	Metrics          *metrics.Families
	Log              zerolog.Logger

	mu                       sync.Mutex
	lastCycleStart           time.Time
	lastSuccessCycleUnixtime int64
}

// marketClosed reports whether now falls outside the configured trading
// window, on a weekend, or on a calendar holiday.
func (e *CycleExecutor) marketClosed(now time.Time) bool {
	if holiday.IsWeekend(now) {
		return true
	}
	if e.Calendar != nil && e.Calendar.IsHoliday(e.MarketCalendarIndex, now) {
		return true
	}
	if e.MarketOpen == 0 && e.MarketClose == 0 {
		return false
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sinceOpen := now.Sub(midnight)
	return sinceOpen < e.MarketOpen || sinceOpen >= e.MarketClose
}

// RunCycle executes one tick of the scheduler loop (spec §4.1 steps 1-7).
func (e *CycleExecutor) RunCycle(ctx context.Context, cycle int64, now time.Time) *CycleReport {
	report := &CycleReport{Cycle: cycle, Now: now}
	cycleLog := logger.Cycle(e.Log, cycle)

	if e.Config.MarketHoursGating && e.marketClosed(now) {
		report.SkippedMarketClosed = true
		cycleLog.Debug().Msg("market closed, skipping cycle")
		return report
	}

	e.mu.Lock()
	if !e.lastCycleStart.IsZero() && e.Config.MissingCycleFactor > 0 {
		gap := now.Sub(e.lastCycleStart)
		if gap.Seconds() >= e.Config.MissingCycleFactor*e.Config.Interval.Seconds() {
			report.MissingCycleDetected = true
			if e.Metrics != nil {
				e.Metrics.MissingCyclesTotal.Inc()
			}
		}
	}
	e.lastCycleStart = now
	e.mu.Unlock()

	if e.Metrics != nil {
		e.Metrics.CyclesTotal.Inc()
	}

	budgetDeadline := now.Add(e.Config.cycleBudget())
	sem := make(chan struct{}, e.Config.ParallelIndexWorkers)

	var wg sync.WaitGroup
	var resultsMu sync.Mutex

	for _, idx := range e.Indices {
		idx := idx

		select {
		case sem <- struct{}{}:
		case <-time.After(time.Until(budgetDeadline)):
			report.BudgetSkippedIndices = append(report.BudgetSkippedIndices, idx.Symbol)
			if e.Metrics != nil {
				e.Metrics.CycleBudgetSkipsTotal.Inc()
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, timedOut := e.runIndexWithRetry(ctx, idx, now)

			resultsMu.Lock()
			report.Results = append(report.Results, result)
			if timedOut {
				report.TimedOutIndices = append(report.TimedOutIndices, idx.Symbol)
			}
			if result.SpotErr != nil && e.Metrics != nil {
				e.Metrics.IndexFailureTotal.WithLabelValues(idx.Symbol).Inc()
			}
			resultsMu.Unlock()
		}()
	}

	wg.Wait()

	report.Elapsed = time.Since(now)
	if report.Elapsed > e.Config.slaDeadline() {
		report.SLABreached = true
		if e.Metrics != nil {
			e.Metrics.CycleSLABreachTotal.Inc()
		}
	}

	hadErrors := len(report.TimedOutIndices) > 0
	for _, r := range report.Results {
		if r.SpotErr != nil {
			hadErrors = true
			break
		}
	}

	e.mu.Lock()
	if e.lastSuccessCycleUnixtime > 0 {
		report.DataGapSeconds = now.Sub(time.Unix(e.lastSuccessCycleUnixtime, 0)).Seconds()
	}
	if !hadErrors {
		e.lastSuccessCycleUnixtime = now.Unix()
	}
	lastSuccess := e.lastSuccessCycleUnixtime
	e.mu.Unlock()

	if e.Metrics != nil {
		e.Metrics.DataGapSeconds.Set(report.DataGapSeconds)
		e.Metrics.LastSuccessCycleUnixtime.Set(float64(lastSuccess))
	}

	cycleLog.Info().
		Dur("elapsed_ms", report.Elapsed).
		Int("indices", len(report.Results)).
		Int("errors", len(report.TimedOutIndices)).
		Bool("sla_breached", report.SLABreached).
		Msg("cycle completed")

	return report
}

// runIndexWithRetry runs idx's pipeline under a per-index soft timeout,
// retrying serially (bounded by ParallelIndexRetry) if the first attempt
// times out. Each retry gets a fresh soft timeout; retries are not
// checked against the remaining cycle budget.
func (e *CycleExecutor) runIndexWithRetry(ctx context.Context, idx *domain.IndexConfig, now time.Time) (*pipeline.IndexResult, bool) {
	result, timedOut := e.runIndexOnce(ctx, idx, now)
	if !timedOut {
		return result, false
	}

	if e.Metrics != nil {
		e.Metrics.ParallelIndexTimeoutsTotal.WithLabelValues(idx.Symbol).Inc()
	}

	for attempt := 0; attempt < e.Config.ParallelIndexRetry; attempt++ {
		result, timedOut = e.runIndexOnce(ctx, idx, now)
		if !timedOut {
			return result, false
		}
		if e.Metrics != nil {
			e.Metrics.ParallelIndexTimeoutsTotal.WithLabelValues(idx.Symbol).Inc()
		}
	}

	return result, true
}

func (e *CycleExecutor) runIndexOnce(ctx context.Context, idx *domain.IndexConfig, now time.Time) (*pipeline.IndexResult, bool) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.Config.softTimeout())
	defer cancel()

	result := e.Work(timeoutCtx, idx, now)
	return result, timeoutCtx.Err() == context.DeadlineExceeded
}
