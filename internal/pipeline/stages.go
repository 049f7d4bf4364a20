package pipeline

import (
	"github.com/aristath/g6/internal/domain"
)

// Prefilter intersects the provider's instrument list with the strike
// universe and the index's option types, clamping to MaxInstruments
// (floor PrefilterFloor) when the intersection is too large (spec §4.2b).
func Prefilter(instruments []domain.Instrument, universe *domain.StrikeUniverse, expiryDate string, th Thresholds) (filtered []domain.Instrument, clamped bool) {
	allowed := make(map[float64]struct{}, len(universe.Strikes))
	for _, s := range universe.Strikes {
		allowed[s] = struct{}{}
	}

	for _, ins := range instruments {
		if ins.ExpiryDate != expiryDate {
			continue
		}
		if _, ok := allowed[ins.Strike]; !ok {
			continue
		}
		if ins.Type != domain.CallOption && ins.Type != domain.PutOption {
			continue
		}
		filtered = append(filtered, ins)
	}

	maxInstruments := th.PrefilterMaxInstruments
	if maxInstruments <= 0 {
		maxInstruments = 2500
	}
	if maxInstruments < th.PrefilterFloor {
		maxInstruments = th.PrefilterFloor
	}

	if len(filtered) > maxInstruments {
		filtered = filtered[:maxInstruments]
		clamped = true
	}
	return filtered, clamped
}

// Validate applies preventive checks to enriched options: non-negative
// prices, plausible IV, foreign-expiry pruning, zero-field flagging
// (spec §4.2d). Rows failing a hard check (negative price, implausible
// IV, foreign expiry) are dropped; rows with merely suspicious fields are kept but
// contribute to the caller's partial reasons via the returned set.
func Validate(options []domain.EnrichedOption, expiryDate string, th Thresholds, bypass bool) (valid []domain.EnrichedOption, reasons map[string]struct{}) {
	reasons = make(map[string]struct{})
	if bypass {
		reasons[domain.ReasonBypassed] = struct{}{}
		return options, reasons
	}

	maxIV := th.MaxPlausibleIV
	if maxIV <= 0 {
		maxIV = 5.0
	}

	for _, opt := range options {
		if opt.ExpiryDate != "" && opt.ExpiryDate != expiryDate {
			reasons[domain.ReasonForeignExpiry] = struct{}{}
			continue
		}
		if opt.LastPrice < 0 || opt.Bid < 0 || opt.Ask < 0 {
			reasons[domain.ReasonNegativePrice] = struct{}{}
			continue
		}
		if opt.IV != nil && (*opt.IV < 0 || *opt.IV > maxIV) {
			reasons[domain.ReasonImplausibleIV] = struct{}{}
			continue
		}
		if !opt.HasPositiveFields() {
			reasons[domain.ReasonZeroFields] = struct{}{}
		}
		valid = append(valid, opt)
	}
	return valid, reasons
}

// ClassifyCoverage computes strike/field coverage and the resulting
// ExpiryStatus (spec §4.2e), mutating snapshot in place.
func ClassifyCoverage(snapshot *domain.ExpirySnapshot, th Thresholds) {
	if snapshot.RequestedStrikes > 0 {
		distinct := distinctStrikes(snapshot.Options)
		snapshot.RealizedStrikes = distinct
		snapshot.StrikeCoverage = float64(distinct) / float64(snapshot.RequestedStrikes)
	}

	total := len(snapshot.Options)
	if total > 0 {
		positive := 0
		for _, o := range snapshot.Options {
			if o.HasPositiveFields() {
				positive++
			}
		}
		snapshot.FieldCoverage = float64(positive) / float64(total)
	}

	strikeOK := th.StrikeCoverageOK
	if strikeOK <= 0 {
		strikeOK = 0.75
	}
	fieldOK := th.FieldCoverageOK
	if fieldOK <= 0 {
		fieldOK = 0.55
	}

	switch {
	case total == 0:
		snapshot.Status = domain.StatusEmpty
	case snapshot.StrikeCoverage >= strikeOK && snapshot.FieldCoverage >= fieldOK:
		snapshot.Status = domain.StatusOK
	default:
		snapshot.Status = domain.StatusPartial
	}
}

func distinctStrikes(options []domain.EnrichedOption) int {
	seen := make(map[float64]struct{}, len(options))
	for _, o := range options {
		seen[o.Strike] = struct{}{}
	}
	return len(seen)
}
