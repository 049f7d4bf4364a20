package sse

import (
	"sync"
	"time"

	"github.com/aristath/g6/internal/events"
)

// snapshotGuard forces a fresh panel_full when the live bus has drifted
// more than SnapshotGapMax events ahead of the last panel_full (spec:
// "server-side snapshot guard forces a full when latest_event_id -
// last_panel_full_id > snapshot_gap_max"), subject to a per-reason
// cooldown so a persistently lagging publisher doesn't force-republish
// every single cycle.
type snapshotGuard struct {
	mu           sync.Mutex
	gapMax       uint64
	retryCooldown time.Duration
	lastForcedAt map[string]time.Time
	now          func() time.Time
}

func newSnapshotGuard(gapMax uint64, retryCooldown time.Duration) *snapshotGuard {
	return &snapshotGuard{
		gapMax:        gapMax,
		retryCooldown: retryCooldown,
		lastForcedAt:  make(map[string]time.Time),
		now:           time.Now,
	}
}

// ShouldForceFull reports whether the bus should publish a fresh
// panel_full right now, and records that it did so (for cooldown
// purposes) when it returns true.
func (g *snapshotGuard) ShouldForceFull(bus *events.Bus) (bool, string) {
	latest := bus.LatestID()
	lastFull := bus.LastPanelFullID()
	if g.gapMax == 0 || latest < lastFull {
		return false, ""
	}
	if latest-lastFull <= g.gapMax {
		return false, ""
	}

	reason := "gap_exceeded"
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastForcedAt[reason]; ok && g.now().Sub(last) < g.retryCooldown {
		return false, ""
	}
	g.lastForcedAt[reason] = g.now()
	return true, reason
}
