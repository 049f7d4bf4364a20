package pipeline

import "time"

// Thresholds collects the per-expiry stage tunables from spec §4.2b-f.
type Thresholds struct {
	PrefilterMaxInstruments int // default 2500
	PrefilterFloor          int // default 50
	StrictMode              bool

	MicroBatchWindow time.Duration // default 15ms

	MaxPlausibleIV float64 // IV above this is implausible; default 5.0 (500%)

	StrikeCoverageOK float64 // default 0.75
	FieldCoverageOK  float64 // default 0.55

	StrikeBreachThreshold int     // consecutive low-coverage cycles before reducing depth; default 3
	StrikeReduction       float64 // default 0.8
	StrikeMinDepth        int     // default 2
	StrikeRestoreHealthy  int     // healthy cycles before restoring one step; default 5
}

// DefaultThresholds returns the spec's documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PrefilterMaxInstruments: 2500,
		PrefilterFloor:          50,
		MicroBatchWindow:        15 * time.Millisecond,
		MaxPlausibleIV:          5.0,
		StrikeCoverageOK:        0.75,
		FieldCoverageOK:         0.55,
		StrikeBreachThreshold:   3,
		StrikeReduction:         0.8,
		StrikeMinDepth:          2,
		StrikeRestoreHealthy:    5,
	}
}
