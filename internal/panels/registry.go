// Package panels builds, hashes, and persists named panel snapshots
// (spec §4.6). Emission cadence and diff/full decisions for individual
// SSE consumers live in internal/events and internal/sse, which consume
// the Registry's snapshots.
package panels

import (
	"sync"
	"time"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/panels/canon"
)

// Registry holds the current value and hash of every named panel.
type Registry struct {
	mu       sync.RWMutex
	maxDepth int
	panels   map[string]*domain.Panel
}

// NewRegistry creates an empty Registry. maxDepth <=0 uses
// canon.DefaultMaxDepth (panel_diff_nest_depth).
func NewRegistry(maxDepth int) *Registry {
	return &Registry{maxDepth: maxDepth, panels: make(map[string]*domain.Panel)}
}

// Set computes data's canonical hash and stores/updates the named
// panel, preserving GeneratedAt across updates and only bumping
// UpdatedAt, which matches the envelope's documented field semantics
// (spec §6).
func (r *Registry) Set(name, source, schema string, data interface{}, now time.Time) (*domain.Panel, error) {
	hash, err := canon.Hash(data, r.maxDepth)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.panels[name]
	generatedAt := now
	if ok {
		generatedAt = existing.GeneratedAt
	}

	p := &domain.Panel{
		Name:        name,
		Version:     domain.PanelEnvelopeVersion,
		GeneratedAt: generatedAt,
		UpdatedAt:   now,
		Meta:        domain.PanelMeta{Source: source, Schema: schema, Hash: hash},
		Data:        data,
	}
	r.panels[name] = p
	return p, nil
}

// Get returns the named panel and whether it exists.
func (r *Registry) Get(name string) (*domain.Panel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.panels[name]
	return p, ok
}

// Snapshot returns a shallow copy of all panels keyed by name, stable
// for a single consumer's full_snapshot/resync response.
func (r *Registry) Snapshot() map[string]*domain.Panel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*domain.Panel, len(r.panels))
	for k, v := range r.panels {
		out[k] = v
	}
	return out
}

// Hashes returns just the name->hash directory, used for the SSE
// `hello` event (spec §4.6).
func (r *Registry) Hashes() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.panels))
	for k, v := range r.panels {
		out[k] = v.Meta.Hash
	}
	return out
}
