package pipeline

import (
	"testing"

	"github.com/aristath/g6/internal/domain"
	"github.com/stretchr/testify/assert"
)

func iv(v float64) *float64 { return &v }

func TestPrefilterKeepsOnlyMatchingExpiryAndStrike(t *testing.T) {
	universe := &domain.StrikeUniverse{Strikes: []float64{24000, 24050}}
	instruments := []domain.Instrument{
		{Symbol: "A", ExpiryDate: "2026-07-30", Strike: 24000, Type: domain.CallOption},
		{Symbol: "B", ExpiryDate: "2026-07-30", Strike: 24100, Type: domain.CallOption}, // wrong strike
		{Symbol: "C", ExpiryDate: "2026-08-06", Strike: 24000, Type: domain.CallOption}, // wrong expiry
	}

	filtered, clamped := Prefilter(instruments, universe, "2026-07-30", DefaultThresholds())
	assert.False(t, clamped)
	assert.Len(t, filtered, 1)
	assert.Equal(t, "A", filtered[0].Symbol)
}

func TestPrefilterClampsAtMaxInstruments(t *testing.T) {
	universe := &domain.StrikeUniverse{Strikes: []float64{24000}}
	instruments := make([]domain.Instrument, 10)
	for i := range instruments {
		instruments[i] = domain.Instrument{Symbol: "X", ExpiryDate: "d", Strike: 24000, Type: domain.CallOption}
	}

	th := DefaultThresholds()
	th.PrefilterMaxInstruments = 3
	filtered, clamped := Prefilter(instruments, universe, "d", th)
	assert.True(t, clamped)
	assert.Len(t, filtered, 3)
}

func TestValidateDropsNegativePrice(t *testing.T) {
	options := []domain.EnrichedOption{
		{Instrument: domain.Instrument{ExpiryDate: "d"}, Quote: domain.Quote{LastPrice: -1}},
	}
	valid, reasons := Validate(options, "d", DefaultThresholds(), false)
	assert.Empty(t, valid)
	_, has := reasons[domain.ReasonNegativePrice]
	assert.True(t, has)
}

func TestValidatePrunesForeignExpiry(t *testing.T) {
	options := []domain.EnrichedOption{
		{Instrument: domain.Instrument{ExpiryDate: "other"}},
	}
	valid, reasons := Validate(options, "d", DefaultThresholds(), false)
	assert.Empty(t, valid)
	_, has := reasons[domain.ReasonForeignExpiry]
	assert.True(t, has)
}

func TestValidateFlagsImplausibleIV(t *testing.T) {
	options := []domain.EnrichedOption{
		{Instrument: domain.Instrument{ExpiryDate: "d"}, Quote: domain.Quote{IV: iv(50)}},
	}
	valid, reasons := Validate(options, "d", DefaultThresholds(), false)
	assert.Empty(t, valid)
	_, has := reasons[domain.ReasonImplausibleIV]
	assert.True(t, has)
}

func TestValidateBypassKeepsAllRows(t *testing.T) {
	options := []domain.EnrichedOption{
		{Instrument: domain.Instrument{ExpiryDate: "other"}, Quote: domain.Quote{LastPrice: -5}},
	}
	valid, reasons := Validate(options, "d", DefaultThresholds(), true)
	assert.Len(t, valid, 1)
	_, has := reasons[domain.ReasonBypassed]
	assert.True(t, has)
}

func TestClassifyCoverageOK(t *testing.T) {
	snap := &domain.ExpirySnapshot{
		RequestedStrikes: 2,
		Options: []domain.EnrichedOption{
			{Instrument: domain.Instrument{Strike: 24000}, Quote: domain.Quote{Volume: 10}},
			{Instrument: domain.Instrument{Strike: 24050}, Quote: domain.Quote{Volume: 10}},
		},
	}
	ClassifyCoverage(snap, DefaultThresholds())
	assert.Equal(t, domain.StatusOK, snap.Status)
}

func TestClassifyCoverageEmptyWhenNoRows(t *testing.T) {
	snap := &domain.ExpirySnapshot{RequestedStrikes: 2}
	ClassifyCoverage(snap, DefaultThresholds())
	assert.Equal(t, domain.StatusEmpty, snap.Status)
}

func TestClassifyCoveragePartialBelowThresholds(t *testing.T) {
	snap := &domain.ExpirySnapshot{
		RequestedStrikes: 4,
		Options: []domain.EnrichedOption{
			{Instrument: domain.Instrument{Strike: 24000}},
		},
	}
	ClassifyCoverage(snap, DefaultThresholds())
	assert.Equal(t, domain.StatusPartial, snap.Status)
}
