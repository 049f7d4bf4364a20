package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/expiry"
	"github.com/aristath/g6/internal/holiday"
	"github.com/aristath/g6/internal/provider"
	"github.com/aristath/g6/internal/strikes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	spot        float64
	instruments []domain.Instrument
	quotes      map[string]domain.Quote
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) GetSpot(ctx context.Context, index string) (float64, time.Time, error) {
	return f.spot, time.Now(), nil
}
func (f *fakeProvider) GetInstruments(ctx context.Context, index string) ([]domain.Instrument, error) {
	return f.instruments, nil
}
func (f *fakeProvider) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(symbols))
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

var _ provider.Client = (*fakeProvider)(nil)

func TestPipelineRunProducesOKSnapshot(t *testing.T) {
	now := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC) // Monday

	idx := &domain.IndexConfig{
		Symbol:        "NIFTY",
		StrikeStep:    50,
		ExpiryTags:    []domain.ExpiryTag{domain.ExpiryThisWeek},
		StrikesITM:    1,
		StrikesOTM:    1,
		WeekdayAnchor: int(time.Thursday),
	}

	fp := &fakeProvider{
		spot: 24000,
		instruments: []domain.Instrument{
			{Symbol: "NIFTY-23950-CE", ExpiryDate: "", Strike: 23950, Type: domain.CallOption},
			{Symbol: "NIFTY-24000-CE", ExpiryDate: "", Strike: 24000, Type: domain.CallOption},
			{Symbol: "NIFTY-24050-CE", ExpiryDate: "", Strike: 24050, Type: domain.CallOption},
		},
		quotes: map[string]domain.Quote{
			"NIFTY-23950-CE": {Symbol: "NIFTY-23950-CE", Volume: 100},
			"NIFTY-24000-CE": {Symbol: "NIFTY-24000-CE", Volume: 100},
			"NIFTY-24050-CE": {Symbol: "NIFTY-24050-CE", Volume: 100},
		},
	}

	// Instruments carry no expiry date in this fixture (provider-agnostic);
	// patch them to the resolved date after resolution so Prefilter/Validate pass.
	resolver := expiry.NewResolver(holiday.NewStaticCalendar(nil))
	resolution := resolver.Resolve(idx, now)
	date := resolution.Dates[domain.ExpiryThisWeek]
	for i := range fp.instruments {
		fp.instruments[i].ExpiryDate = date
	}

	p := &Pipeline{
		Resolver:   resolver,
		Universe:   strikes.NewUniverse(8),
		Provider:   fp,
		Cache:      provider.NewQuoteCache(time.Second),
		Refinement: NewRefinementTracker(),
		Thresholds: DefaultThresholds(),
	}

	result := p.Run(context.Background(), idx, now)
	require.NoError(t, result.SpotErr)
	require.Len(t, result.Expiries, 1)

	snap := result.Expiries[0]
	assert.Equal(t, domain.StatusOK, snap.Status)
	assert.Len(t, snap.Options, 3)
}

func TestPipelineRunTreatsZeroSpotAsSuccess(t *testing.T) {
	idx := &domain.IndexConfig{Symbol: "NIFTY", StrikeStep: 50, ExpiryTags: []domain.ExpiryTag{domain.ExpiryThisWeek}}
	fp := &fakeProvider{spot: 0}

	p := &Pipeline{
		Resolver:   expiry.NewResolver(holiday.NewStaticCalendar(nil)),
		Universe:   strikes.NewUniverse(8),
		Provider:   fp,
		Cache:      provider.NewQuoteCache(time.Second),
		Refinement: NewRefinementTracker(),
		Thresholds: DefaultThresholds(),
	}

	result := p.Run(context.Background(), idx, time.Now())
	assert.NoError(t, result.SpotErr) // fakeProvider never errors; spot=0 is still a "success"
	assert.NotEmpty(t, result.Expiries)
}
