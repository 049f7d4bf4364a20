// Package metrics wraps a prometheus.Registry with group-gated
// registration and a cardinality guard (spec §4.7). Every family
// belongs to a named group so operators can disable noisy families
// (e.g. `analytics_vol_surface`, `cache`, `sse_ingest`) without
// touching code.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// GroupPolicy decides which metric groups get registered:
// disable_groups/enable_groups env lists, disable-wins-on-overlap.
type GroupPolicy struct {
	EnableGroups  []string // empty means "all enabled by default"
	DisableGroups []string
}

// Allowed reports whether group should be registered under this policy.
func (p GroupPolicy) Allowed(group string) bool {
	if containsFold(p.DisableGroups, group) {
		return false
	}
	if len(p.EnableGroups) == 0 {
		return true
	}
	return containsFold(p.EnableGroups, group)
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// Registry wraps a prometheus.Registry, gating each Collector's
// registration by the group it was declared under.
type Registry struct {
	mu       sync.Mutex
	prom     *prometheus.Registry
	policy   GroupPolicy
	enabled  map[string]bool // group -> registered
}

// New builds a Registry applying policy at construction time; the
// policy cannot be changed afterwards.
func New(policy GroupPolicy) *Registry {
	return &Registry{
		prom:    prometheus.NewRegistry(),
		policy:  policy,
		enabled: make(map[string]bool),
	}
}

// Prometheus exposes the underlying registry for the HTTP handler
// (promhttp.HandlerFor).
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.prom
}

// Register registers collector under group if the policy allows it.
// Returns whether it was registered (false is not an error — it's a
// deliberate, policy-driven no-op).
func (r *Registry) Register(group string, collector prometheus.Collector) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.policy.Allowed(group) {
		return false
	}
	if err := r.prom.Register(collector); err != nil {
		return false
	}
	r.enabled[group] = true
	return true
}

// GroupEnabled reports whether at least one collector was registered
// under group.
func (r *Registry) GroupEnabled(group string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled[group]
}
