// Package pipeline implements the per-index staged collection pipeline:
// resolve expiries -> strike universe -> instrument prefilter -> quote
// enrichment -> validation -> coverage classification -> adaptive strike
// refinement -> finalize (spec §4.2).
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/g6/internal/domain"
)

// FetchFunc performs the real upstream quote fetch for a coalesced batch
// of symbols.
type FetchFunc func(ctx context.Context, symbols []string) (map[string]domain.Quote, error)

// MicroBatcher coalesces quote-cache misses arriving within a short window
// into a single upstream call, so that overlapping per-expiry stages
// across goroutines don't each issue their own request for the same
// burst of symbols (spec §4.2c: "cache miss symbols consolidated into
// micro-batches within a ~15ms window before a single provider call").
//
// Grounded on the teacher's tradernet SDK job-queue (request/resultCh
// channel pairs dispatched to a single worker), generalized from
// one-job-per-request sequencing into windowed coalescing.
type MicroBatcher struct {
	window time.Duration
	fetch  FetchFunc

	mu      sync.Mutex
	pending map[string]struct{}
	waiters []chan batchResult
	timer   *time.Timer
}

type batchResult struct {
	quotes map[string]domain.Quote
	err    error
}

// NewMicroBatcher builds a batcher with the given coalescing window
// (<=0 defaults to 15ms).
func NewMicroBatcher(window time.Duration, fetch FetchFunc) *MicroBatcher {
	if window <= 0 {
		window = 15 * time.Millisecond
	}
	return &MicroBatcher{window: window, fetch: fetch, pending: make(map[string]struct{})}
}

// Request adds symbols to the in-flight batch and blocks until that
// batch's upstream call completes, returning only the quotes for the
// symbols this call asked for.
func (b *MicroBatcher) Request(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}

	ch := make(chan batchResult, 1)

	b.mu.Lock()
	for _, s := range symbols {
		b.pending[s] = struct{}{}
	}
	b.waiters = append(b.waiters, ch)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
	b.mu.Unlock()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		out := make(map[string]domain.Quote, len(symbols))
		for _, s := range symbols {
			if q, ok := res.quotes[s]; ok {
				out[s] = q
			}
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MicroBatcher) flush() {
	b.mu.Lock()
	symbols := make([]string, 0, len(b.pending))
	for s := range b.pending {
		symbols = append(symbols, s)
	}
	waiters := b.waiters
	b.pending = make(map[string]struct{})
	b.waiters = nil
	b.timer = nil
	b.mu.Unlock()

	quotes, err := b.fetch(context.Background(), symbols)
	result := batchResult{quotes: quotes, err: err}
	for _, w := range waiters {
		w <- result
	}
}
