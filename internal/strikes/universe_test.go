package strikes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContainsExactDepthAndATM(t *testing.T) {
	u := NewUniverse(8)
	policy := Policy{ITM: 2, OTM: 2, Step: 50}

	su, err := u.Build("NIFTY", 24000, policy)
	require.NoError(t, err)

	assert.Len(t, su.Strikes, 5)
	assert.True(t, su.ContainsATM(24000))
	assert.Equal(t, "fresh", su.Source)
	assert.False(t, su.CacheHit)
}

func TestBuildSecondCallIsCacheHit(t *testing.T) {
	u := NewUniverse(8)
	policy := Policy{ITM: 2, OTM: 2, Step: 50}

	_, err := u.Build("NIFTY", 24000, policy)
	require.NoError(t, err)

	su, err := u.Build("NIFTY", 24010, policy) // same bucket after rounding
	require.NoError(t, err)
	assert.True(t, su.CacheHit)
	assert.Equal(t, "cache", su.Source)
}

func TestBuildRejectsNonPositiveStep(t *testing.T) {
	u := NewUniverse(8)
	_, err := u.Build("NIFTY", 24000, Policy{ITM: 2, OTM: 2, Step: 0})
	assert.Error(t, err)
}

func TestLRUEvictsOldestEntry(t *testing.T) {
	u := NewUniverse(1)
	policy := Policy{ITM: 1, OTM: 1, Step: 50}

	_, _ = u.Build("NIFTY", 24000, policy)
	_, _ = u.Build("BANKNIFTY", 51000, policy)

	su, err := u.Build("NIFTY", 24000, policy)
	require.NoError(t, err)
	assert.False(t, su.CacheHit, "NIFTY entry should have been evicted by BANKNIFTY")
}

func TestReduceAndRestore(t *testing.T) {
	policy := Policy{ITM: 4, OTM: 4, Step: 50, MinDepth: 2}

	reduced := policy.Reduce(0.8)
	assert.Equal(t, 3, reduced.ITM)
	assert.Equal(t, 3, reduced.OTM)

	restored := reduced.Restore(policy)
	assert.Equal(t, 4, restored.ITM)
	assert.Equal(t, 4, restored.OTM)
}

func TestReduceFloorsAtMinDepth(t *testing.T) {
	policy := Policy{ITM: 2, OTM: 2, Step: 50, MinDepth: 2}
	reduced := policy.Reduce(0.1)
	assert.Equal(t, 2, reduced.ITM)
	assert.Equal(t, 2, reduced.OTM)
}
