package pipeline

import (
	"context"
	"time"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/errs"
	"github.com/aristath/g6/internal/expiry"
	"github.com/aristath/g6/internal/provider"
	"github.com/aristath/g6/internal/strikes"
)

// Pipeline runs the per-index collection stages described in spec §4.2,
// wiring together the expiry resolver, strike universe cache, provider
// client, quote cache, and the adaptive refinement tracker. Quote-cache
// misses are fetched with one direct Provider.GetQuotes call per expiry;
// Pipeline does not use MicroBatcher.
type Pipeline struct {
	Resolver   *expiry.Resolver
	Universe   *strikes.Universe
	Provider   provider.Client
	Cache      *provider.QuoteCache
	Refinement *RefinementTracker
	Thresholds Thresholds
}

// IndexResult is the per-index output of one cycle, handed by value to
// alert aggregation and panel rendering (spec §3: "CycleExecutor owns
// per-cycle entities ... produced and handed by value to downstream
// stages").
type IndexResult struct {
	Index               string
	SpotPrice           float64
	SpotTimestamp       time.Time
	SpotErr             error
	Expiries            []*domain.ExpirySnapshot
	UnresolvedTags       []domain.ExpiryTag
	PartialReasonTotals map[string]int
}

// Run executes the full per-index pipeline for one cycle.
func (p *Pipeline) Run(ctx context.Context, idx *domain.IndexConfig, now time.Time) *IndexResult {
	result := &IndexResult{Index: idx.Symbol, PartialReasonTotals: make(map[string]int)}

	spot, ts, err := p.Provider.GetSpot(ctx, idx.Symbol)
	if err != nil {
		result.SpotErr = err
		return result
	}
	result.SpotPrice = spot
	result.SpotTimestamp = ts

	resolution := p.Resolver.Resolve(idx, now)
	result.UnresolvedTags = resolution.UnresolvedTags
	if len(resolution.Dates) == 0 {
		return result
	}

	instruments, err := p.Provider.GetInstruments(ctx, idx.Symbol)
	if err != nil {
		result.SpotErr = err
		return result
	}

	basePolicy := strikes.Policy{ITM: idx.StrikesITM, OTM: idx.StrikesOTM, Step: idx.StrikeStep, MinDepth: p.Thresholds.StrikeMinDepth}

	for _, tag := range idx.ExpiryTags {
		date, ok := resolution.Dates[tag]
		if !ok {
			continue
		}

		policy := p.Refinement.PolicyFor(idx.Symbol, tag, basePolicy)
		snapshot := p.runExpiry(ctx, idx, tag, date, result.SpotPrice, instruments, policy)
		result.Expiries = append(result.Expiries, snapshot)

		for reason := range snapshot.PartialReasons {
			result.PartialReasonTotals[reason]++
		}

		p.Refinement.Observe(idx.Symbol, tag, policy, snapshot.StrikeCoverage, p.Thresholds)
	}

	return result
}

func (p *Pipeline) runExpiry(ctx context.Context, idx *domain.IndexConfig, tag domain.ExpiryTag, date string, atmPrice float64, instruments []domain.Instrument, policy strikes.Policy) *domain.ExpirySnapshot {
	snapshot := &domain.ExpirySnapshot{
		Index:          idx.Symbol,
		Tag:            tag,
		ExpiryDate:     date,
		PartialReasons: make(domain.StringSet),
	}

	universe, err := p.Universe.Build(idx.Symbol, atmPrice, policy)
	if err != nil {
		snapshot.Status = domain.StatusEmpty
		snapshot.AddReason(domain.ReasonZeroFields)
		return snapshot
	}
	snapshot.RequestedStrikes = len(universe.Strikes)

	filtered, clamped := Prefilter(instruments, universe, date, p.Thresholds)
	if clamped {
		snapshot.AddReason(domain.ReasonPrefilterClamp)
	}
	if len(filtered) == 0 {
		snapshot.Status = domain.StatusEmpty
		return snapshot
	}

	symbols := make([]string, len(filtered))
	for i, ins := range filtered {
		symbols[i] = ins.Symbol
	}

	quotes, err := p.fetchQuotes(ctx, symbols)
	if err != nil {
		if errs.ClassOf(err) == errs.ClassRateLimited {
			snapshot.AddReason(domain.ReasonRateLimited)
		} else if errs.ClassOf(err) == errs.ClassTimeout {
			snapshot.AddReason(domain.ReasonTimeout)
		}
		snapshot.Status = domain.StatusEmpty
		return snapshot
	}

	options := make([]domain.EnrichedOption, 0, len(filtered))
	for _, ins := range filtered {
		q, ok := quotes[ins.Symbol]
		if !ok {
			continue
		}
		options = append(options, domain.EnrichedOption{Instrument: ins, Quote: q})
	}

	valid, reasons := Validate(options, date, p.Thresholds, false)
	for reason := range reasons {
		snapshot.AddReason(reason)
	}
	snapshot.Options = valid

	ClassifyCoverage(snapshot, p.Thresholds)
	return snapshot
}

// fetchQuotes serves from the quote cache, falling back to the provider
// for cache misses (spec §4.2c).
func (p *Pipeline) fetchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	result := make(map[string]domain.Quote, len(symbols))
	missing := p.Cache.Missing(symbols)
	for _, s := range symbols {
		if q, ok := p.Cache.Get(s); ok {
			result[s] = q
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := p.Provider.GetQuotes(ctx, missing)
	if err != nil {
		return nil, err
	}
	p.Cache.PutAll(fetched)
	for symbol, q := range fetched {
		result[symbol] = q
	}
	return result, nil
}
