package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestGroupPolicyDisableWinsOnOverlap(t *testing.T) {
	p := GroupPolicy{EnableGroups: []string{"cache"}, DisableGroups: []string{"cache"}}
	assert.False(t, p.Allowed("cache"), "disable must win when a group is in both lists")
}

func TestGroupPolicyEmptyEnableListAllowsEverythingNotDisabled(t *testing.T) {
	p := GroupPolicy{DisableGroups: []string{"sse_ingest"}}
	assert.True(t, p.Allowed("cache"))
	assert.False(t, p.Allowed("sse_ingest"))
}

func TestGroupPolicyNonEmptyEnableListRestrictsToIt(t *testing.T) {
	p := GroupPolicy{EnableGroups: []string{"cache"}}
	assert.True(t, p.Allowed("cache"))
	assert.False(t, p.Allowed("scheduler"))
}

func TestRegisterSkipsDisabledGroup(t *testing.T) {
	reg := New(GroupPolicy{DisableGroups: []string{"cache"}})
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "g6_test_counter"})

	ok := reg.Register("cache", c)
	assert.False(t, ok)
	assert.False(t, reg.GroupEnabled("cache"))
}

func TestRegisterSucceedsForAllowedGroup(t *testing.T) {
	reg := New(GroupPolicy{})
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "g6_test_counter_2"})

	ok := reg.Register("scheduler", c)
	assert.True(t, ok)
	assert.True(t, reg.GroupEnabled("scheduler"))
}

func TestFamiliesRegisterAllWiresEveryGroup(t *testing.T) {
	reg := New(GroupPolicy{})
	f := NewFamilies()
	f.RegisterAll(reg)

	for _, g := range []string{GroupScheduler, GroupPipeline, GroupSSE, GroupPanels, GroupCache, GroupProvider, GroupAdaptive, GroupAlerts, GroupAnalyticsVol} {
		assert.True(t, reg.GroupEnabled(g), "expected group %s to be registered", g)
	}
}
