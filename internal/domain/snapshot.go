package domain

// ExpiryStatus classifies the outcome of one expiry's collection (spec §3, §4.2e).
type ExpiryStatus string

const (
	StatusOK      ExpiryStatus = "OK"
	StatusPartial ExpiryStatus = "PARTIAL"
	StatusEmpty   ExpiryStatus = "EMPTY"
)

// Common partial_reason tokens (spec §4.2, non-exhaustive; stages may add
// their own, this set is what the core pipeline itself emits).
const (
	ReasonBypassed       = "bypassed"
	ReasonPrefilterClamp = "prefilter_clamp"
	ReasonRateLimited     = "rate_limited"
	ReasonTimeout         = "timeout"
	ReasonForeignExpiry   = "foreign_expiry_pruned"
	ReasonZeroFields      = "zero_fields"
	ReasonNegativePrice   = "negative_price"
	ReasonImplausibleIV   = "implausible_iv"
)

// StrikeUniverse is the ATM-centered strike list for one (index, expiry)
// cycle computation (spec §3).
type StrikeUniverse struct {
	Index     string
	ATMBucket float64
	Step      float64
	Strikes   []float64 // ascending
	Source    string    // "fresh" or "cache"
	CacheHit  bool
}

// ContainsATM reports whether atm is present in the strike list, which is
// an invariant of a well-formed universe (spec §3).
func (u *StrikeUniverse) ContainsATM(atm float64) bool {
	for _, s := range u.Strikes {
		if s == atm {
			return true
		}
	}
	return false
}

// ExpirySnapshot is the per-(index,tag) output of the pipeline (spec §3).
type ExpirySnapshot struct {
	Index           string
	Tag             ExpiryTag
	ExpiryDate      string
	Options         []EnrichedOption
	StrikeCoverage  float64
	FieldCoverage   float64
	Status          ExpiryStatus
	PartialReasons  StringSet
	RequestedStrikes int
	RealizedStrikes  int
}

// AddReason records a partial_reason token (idempotent).
func (s *ExpirySnapshot) AddReason(reason string) {
	if s.PartialReasons == nil {
		s.PartialReasons = make(StringSet)
	}
	s.PartialReasons.Add(reason)
}

// HasReason reports whether reason was recorded.
func (s *ExpirySnapshot) HasReason(reason string) bool {
	_, ok := s.PartialReasons[reason]
	return ok
}

// VolSurfaceQualityScore implements the Open Question decision recorded in
// SPEC_FULL.md: strike_coverage * field_coverage * (1 - interpolated_fraction).
func (s *ExpirySnapshot) VolSurfaceQualityScore() float64 {
	if len(s.Options) == 0 {
		return 0
	}
	interpolated := 0
	for _, o := range s.Options {
		if o.Interpolated {
			interpolated++
		}
	}
	interpFrac := float64(interpolated) / float64(len(s.Options))
	return s.StrikeCoverage * s.FieldCoverage * (1 - interpFrac)
}
