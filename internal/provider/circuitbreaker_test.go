package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitAllowsWhenClosed(t *testing.T) {
	b := NewCircuitBreaker("primary", CircuitBreakerConfig{})
	assert.NoError(t, b.Allow())
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker("primary", CircuitBreakerConfig{FailureThreshold: 3})
	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.Error(t, b.Allow())
	assert.Equal(t, circuitOpen, b.State().State)
}

func TestCircuitHalfOpensAfterBackoffElapses(t *testing.T) {
	fakeNow := time.Now()
	b := NewCircuitBreaker("primary", CircuitBreakerConfig{FailureThreshold: 1, BaseBackoff: time.Second})
	b.now = func() time.Time { return fakeNow }
	b.RecordFailure()
	require.Equal(t, circuitOpen, b.State().State)

	b.now = func() time.Time { return fakeNow.Add(2 * time.Second) }
	assert.NoError(t, b.Allow())
	assert.Equal(t, circuitHalfOpen, b.State().State)
}

func TestCircuitClosesAfterHalfOpenSuccesses(t *testing.T) {
	fakeNow := time.Now()
	b := NewCircuitBreaker("primary", CircuitBreakerConfig{FailureThreshold: 1, BaseBackoff: time.Second, HalfOpenSuccesses: 2})
	b.now = func() time.Time { return fakeNow }
	b.RecordFailure()

	b.now = func() time.Time { return fakeNow.Add(2 * time.Second) }
	require.NoError(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, circuitHalfOpen, b.State().State)
	b.RecordSuccess()
	assert.Equal(t, circuitClosed, b.State().State)
}

func TestCircuitHalfOpenFailureReopens(t *testing.T) {
	fakeNow := time.Now()
	b := NewCircuitBreaker("primary", CircuitBreakerConfig{FailureThreshold: 1, BaseBackoff: time.Second})
	b.now = func() time.Time { return fakeNow }
	b.RecordFailure()

	b.now = func() time.Time { return fakeNow.Add(2 * time.Second) }
	require.NoError(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, circuitOpen, b.State().State)
	assert.Equal(t, 2, b.State().ConsecutiveOpens)
}

func TestCircuitBackoffGrowsWithConsecutiveOpens(t *testing.T) {
	b := NewCircuitBreaker("primary", CircuitBreakerConfig{BaseBackoff: time.Second, MaxBackoff: time.Hour})
	short := b.backoffForLocked(1)
	long := b.backoffForLocked(3)
	assert.Greater(t, long, short)
}

func TestCircuitStateRoundTrip(t *testing.T) {
	b := NewCircuitBreaker("primary", CircuitBreakerConfig{FailureThreshold: 1})
	b.RecordFailure()
	s := b.State()

	b2 := NewCircuitBreaker("primary", CircuitBreakerConfig{FailureThreshold: 1})
	b2.Restore(s)
	assert.Equal(t, s.State, b2.State().State)
}
