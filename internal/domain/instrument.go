package domain

import "time"

// OptionType is CE (call) or PE (put).
type OptionType string

const (
	CallOption OptionType = "CE"
	PutOption  OptionType = "PE"
)

// Instrument identifies a single option contract (spec §3).
type Instrument struct {
	Symbol     string
	Index      string
	ExpiryDate string // canonical YYYY-MM-DD
	Strike     float64
	Type       OptionType
}

// Quote is the upstream market data for a symbol (spec §3).
type Quote struct {
	Symbol    string
	LastPrice float64
	Volume    int64
	OI        int64
	Bid       float64
	Ask       float64
	AvgPrice  float64
	IV        *float64 // optional implied volatility
	Delta     *float64 // optional Greek
	Gamma     *float64
	Theta     *float64
	Vega      *float64
	Timestamp time.Time
}

// HasPositiveFields reports whether the quote carries the "meaningful
// activity" fields used by field-coverage classification (spec §4.2e):
// volume, OI, and average price, any one positive is sufficient.
func (q *Quote) HasPositiveFields() bool {
	return q.Volume > 0 || q.OI > 0 || q.AvgPrice > 0
}

// EnrichedOption is an Instrument merged with its Quote plus derived
// fields (spec §3).
type EnrichedOption struct {
	Instrument
	Quote
	Interpolated   bool    // true if IV/Greeks were interpolated rather than observed
	DeltaNotional  float64 // delta * OI * strike, used for risk_delta_drift
	SpreadFraction float64 // (ask-bid)/mid, used for wide_spread alerting
	StaleAgeSecs   float64 // age of the quote timestamp relative to cycle time
}

// Mid returns the midpoint of the bid/ask spread, or LastPrice as a
// fallback when bid/ask are not both positive.
func (e *EnrichedOption) Mid() float64 {
	if e.Bid > 0 && e.Ask > 0 {
		return (e.Bid + e.Ask) / 2
	}
	return e.LastPrice
}
