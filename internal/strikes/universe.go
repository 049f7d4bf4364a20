// Package strikes builds ATM-centered strike universes and caches them
// per (index, atm_bucket, policy), per spec §2 StrikeUniverse / §3.
package strikes

import (
	"container/list"
	"fmt"
	"math"
	"sync"

	"github.com/aristath/g6/internal/domain"
)

// Policy controls strike-universe depth, independent of the index's
// static config — the pipeline's RefinementTracker computes reduced or
// restored copies of this via Reduce/Restore (spec §4.2f, §4.4).
type Policy struct {
	ITM      int
	OTM      int
	Step     float64
	MinDepth int // floor applied when adaptive scaling reduces depth
	MaxDepth int // 0 means unbounded
}

// cacheKey identifies one cached universe.
type cacheKey struct {
	index     string
	atmBucket float64
	itm, otm  int
	step      float64
}

// Universe computes and LRU-caches strike universes.
type Universe struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[cacheKey]*list.Element
}

type cacheEntry struct {
	key  cacheKey
	data *domain.StrikeUniverse
}

// NewUniverse creates a strike-universe builder with an LRU cache of the
// given capacity (number of distinct (index, atm_bucket, policy) keys).
func NewUniverse(capacity int) *Universe {
	if capacity <= 0 {
		capacity = 128
	}
	return &Universe{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[cacheKey]*list.Element),
	}
}

// atmBucket rounds atmPrice to the nearest step so that nearby spot
// prices within the same step bucket share a cache entry.
func atmBucket(atmPrice, step float64) float64 {
	if step <= 0 {
		return atmPrice
	}
	return math.Round(atmPrice/step) * step
}

// Build returns the strike universe for index at atmPrice under policy,
// serving from the LRU cache when available (spec §3 invariant: contains
// exactly ITM+1+OTM entries unless bounded by policy min/max; atm is a
// member of the list).
func (u *Universe) Build(index string, atmPrice float64, policy Policy) (*domain.StrikeUniverse, error) {
	if policy.Step <= 0 {
		return nil, fmt.Errorf("strike step must be positive, got %v", policy.Step)
	}

	bucket := atmBucket(atmPrice, policy.Step)
	key := cacheKey{index: index, atmBucket: bucket, itm: policy.ITM, otm: policy.OTM, step: policy.Step}

	u.mu.Lock()
	if el, ok := u.items[key]; ok {
		u.ll.MoveToFront(el)
		cached := el.Value.(*cacheEntry).data
		u.mu.Unlock()
		hit := *cached
		hit.Source = "cache"
		hit.CacheHit = true
		return &hit, nil
	}
	u.mu.Unlock()

	fresh := buildFresh(index, bucket, policy)

	u.mu.Lock()
	el := u.ll.PushFront(&cacheEntry{key: key, data: fresh})
	u.items[key] = el
	for u.ll.Len() > u.capacity {
		back := u.ll.Back()
		if back == nil {
			break
		}
		u.ll.Remove(back)
		delete(u.items, back.Value.(*cacheEntry).key)
	}
	u.mu.Unlock()

	result := *fresh
	return &result, nil
}

func buildFresh(index string, bucket float64, policy Policy) *domain.StrikeUniverse {
	itm, otm := clampDepth(policy.ITM, policy.MinDepth, policy.MaxDepth), clampDepth(policy.OTM, policy.MinDepth, policy.MaxDepth)

	count := itm + 1 + otm
	strikes := make([]float64, 0, count)
	for i := itm; i >= 1; i-- {
		strikes = append(strikes, bucket-float64(i)*policy.Step)
	}
	strikes = append(strikes, bucket)
	for i := 1; i <= otm; i++ {
		strikes = append(strikes, bucket+float64(i)*policy.Step)
	}

	return &domain.StrikeUniverse{
		Index:     index,
		ATMBucket: bucket,
		Step:      policy.Step,
		Strikes:   strikes,
		Source:    "fresh",
		CacheHit:  false,
	}
}

func clampDepth(depth, min, max int) int {
	if min > 0 && depth < min {
		depth = min
	}
	if max > 0 && depth > max {
		depth = max
	}
	if depth < 0 {
		depth = 0
	}
	return depth
}

// Reduce returns a copy of policy with ITM/OTM scaled by factor and
// floored at policy.MinDepth, per the strike-depth adaptive refinement
// in spec §4.2f.
func (p Policy) Reduce(factor float64) Policy {
	out := p
	out.ITM = reduceDepth(p.ITM, factor, p.MinDepth)
	out.OTM = reduceDepth(p.OTM, factor, p.MinDepth)
	return out
}

// Restore returns a copy of policy with ITM/OTM increased by one step,
// bounded by base (the index's configured depth).
func (p Policy) Restore(base Policy) Policy {
	out := p
	if out.ITM < base.ITM {
		out.ITM++
	}
	if out.OTM < base.OTM {
		out.OTM++
	}
	return out
}

func reduceDepth(depth int, factor float64, min int) int {
	reduced := int(math.Floor(float64(depth) * factor))
	if reduced < min {
		reduced = min
	}
	return reduced
}
