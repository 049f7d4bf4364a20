// Package adaptive implements the per-index AdaptiveController that
// mutates next-cycle detail mode based on SLA breaches, memory
// pressure, cardinality guard state, and alert severity feedback
// (spec §4.4).
package adaptive

import (
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryTierFunc reports the current memory pressure tier in [0,3],
// where 0 is healthy and 3 is severe (spec §4.4 "memory_tier ∈ {0,1,2,3}").
type MemoryTierFunc func() (int, error)

// MemoryTierThresholds maps gopsutil's UsedPercent reading to a tier.
type MemoryTierThresholds struct {
	Tier1, Tier2, Tier3 float64 // ascending UsedPercent cutoffs; defaults 70/85/95
}

// DefaultMemoryTierThresholds returns conservative defaults.
func DefaultMemoryTierThresholds() MemoryTierThresholds {
	return MemoryTierThresholds{Tier1: 70, Tier2: 85, Tier3: 95}
}

// GopsutilMemoryTier builds a MemoryTierFunc backed by gopsutil's
// VirtualMemory reading, matching the teacher's system-stats handler
// (internal/server/system_handlers.go's getSystemStats).
func GopsutilMemoryTier(th MemoryTierThresholds) MemoryTierFunc {
	return func() (int, error) {
		stat, err := mem.VirtualMemory()
		if err != nil {
			return 0, err
		}
		return tierFor(stat.UsedPercent, th), nil
	}
}

func tierFor(usedPercent float64, th MemoryTierThresholds) int {
	switch {
	case usedPercent >= th.Tier3:
		return 3
	case usedPercent >= th.Tier2:
		return 2
	case usedPercent >= th.Tier1:
		return 1
	default:
		return 0
	}
}
