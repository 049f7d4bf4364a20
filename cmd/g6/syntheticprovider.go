package main

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/g6/internal/domain"
)

// syntheticProvider is a deterministic, in-memory stand-in for the
// out-of-scope broker client (SPEC_FULL.md §6: "ProviderClient is
// defined as a Go interface ... with no concrete broker
// implementation"). It generates a plausible ATM price and a bounded
// option chain around it so the rest of the pipeline has real data to
// flow through end to end, the same shape the package tests exercise
// against their own fakeProvider.
type syntheticProvider struct {
	name      string
	basePrice map[string]float64
}

func newSyntheticProvider(name string, basePrice map[string]float64) *syntheticProvider {
	return &syntheticProvider{name: name, basePrice: basePrice}
}

func (p *syntheticProvider) Name() string { return p.name }

func (p *syntheticProvider) GetSpot(ctx context.Context, index string) (float64, time.Time, error) {
	base, ok := p.basePrice[index]
	if !ok {
		base = 20000
	}
	wobble := math.Sin(float64(time.Now().Unix())/60) * base * 0.001
	return base + wobble, time.Now(), nil
}

func (p *syntheticProvider) GetInstruments(ctx context.Context, index string) ([]domain.Instrument, error) {
	base, ok := p.basePrice[index]
	if !ok {
		base = 20000
	}
	step := 50.0
	if base > 30000 {
		step = 100.0
	}
	expiry := time.Now().AddDate(0, 0, 7).Format("2006-01-02")

	var out []domain.Instrument
	for i := -10; i <= 10; i++ {
		strike := math.Round((base+float64(i)*step)/step) * step
		out = append(out,
			domain.Instrument{Symbol: syntheticSymbol(index, expiry, strike, domain.CallOption), Index: index, ExpiryDate: expiry, Strike: strike, Type: domain.CallOption},
			domain.Instrument{Symbol: syntheticSymbol(index, expiry, strike, domain.PutOption), Index: index, ExpiryDate: expiry, Strike: strike, Type: domain.PutOption},
		)
	}
	return out, nil
}

func (p *syntheticProvider) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(symbols))
	now := time.Now()
	for _, sym := range symbols {
		price := 50.0 + math.Mod(float64(len(sym))*7.3, 200)
		iv := 0.15 + math.Mod(float64(len(sym)), 5)*0.02
		out[sym] = domain.Quote{
			Symbol:    sym,
			LastPrice: price,
			Volume:    int64(100 + len(sym)*13),
			OI:        int64(1000 + len(sym)*97),
			Bid:       price * 0.98,
			Ask:       price * 1.02,
			AvgPrice:  price,
			IV:        &iv,
			Timestamp: now,
		}
	}
	return out, nil
}

func syntheticSymbol(index, expiry string, strike float64, opt domain.OptionType) string {
	compact := strings.ReplaceAll(expiry, "-", "")
	return index + compact + strikeString(strike) + string(opt)
}

func strikeString(strike float64) string {
	return strconv.FormatFloat(strike, 'f', 0, 64)
}
