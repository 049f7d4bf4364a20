package provider

import (
	"sync"
	"time"

	"github.com/aristath/g6/internal/domain"
)

// QuoteCache is a short-TTL per-symbol quote cache that absorbs bursts of
// near-simultaneous requests for the same symbol across overlapping
// pipeline stages (spec §4.3: "quote cache ... TTL default 3s").
type QuoteCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	entries map[string]cachedQuote
}

type cachedQuote struct {
	quote   domain.Quote
	fetched time.Time
}

// NewQuoteCache builds a QuoteCache with the given TTL (<=0 defaults to 3s).
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &QuoteCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedQuote),
	}
}

// Get returns the cached quote for symbol if it is still fresh.
func (c *QuoteCache) Get(symbol string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok || c.now().Sub(e.fetched) > c.ttl {
		return domain.Quote{}, false
	}
	return e.quote, true
}

// Put stores a freshly fetched quote.
func (c *QuoteCache) Put(symbol string, q domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = cachedQuote{quote: q, fetched: c.now()}
}

// Missing filters symbols down to those without a fresh cache entry,
// the set the pipeline then requests from the upstream provider.
func (c *QuoteCache) Missing(symbols []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	missing := make([]string, 0, len(symbols))
	for _, s := range symbols {
		e, ok := c.entries[s]
		if !ok || now.Sub(e.fetched) > c.ttl {
			missing = append(missing, s)
		}
	}
	return missing
}

// PutAll stores a batch of freshly fetched quotes.
func (c *QuoteCache) PutAll(quotes map[string]domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for symbol, q := range quotes {
		c.entries[symbol] = cachedQuote{quote: q, fetched: now}
	}
}

// Purge drops entries older than maxAge, bounding memory growth for
// symbols that stop being requested (e.g. after an expiry rolls off).
func (c *QuoteCache) Purge(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for symbol, e := range c.entries {
		if now.Sub(e.fetched) > maxAge {
			delete(c.entries, symbol)
			removed++
		}
	}
	return removed
}

// Len reports the number of cached entries, for cardinality diagnostics.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
