// Package provider implements the resilience layer around the upstream
// broker collaborator: rate limiting, quote caching, circuit breaking,
// composite failover, and retry-with-jitter (spec §2, §4.3).
//
// The broker's HTTP client implementation itself is out of scope (spec
// §1); this package only depends on the Client interface below.
package provider

import (
	"context"
	"time"

	"github.com/aristath/g6/internal/domain"
)

// Client is the abstract upstream provider contract (spec §6).
type Client interface {
	// Name identifies the provider for metrics/logging (e.g. "primary", "secondary").
	Name() string
	GetSpot(ctx context.Context, index string) (price float64, ts time.Time, err error)
	GetInstruments(ctx context.Context, index string) ([]domain.Instrument, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}
