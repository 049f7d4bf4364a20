package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilCauseIsNil(t *testing.T) {
	assert.Nil(t, Wrap(ClassFatal, nil))
}

func TestEligibleByClass(t *testing.T) {
	cases := []struct {
		class    Class
		eligible bool
	}{
		{ClassAuth, false},
		{ClassTimeout, true},
		{ClassRateLimited, true},
		{ClassFatal, false},
		{ClassRecoverable, true},
		{ClassData, false},
		{ClassInternal, false},
	}

	for _, tc := range cases {
		err := Wrap(tc.class, errors.New("boom"))
		assert.Equal(t, tc.eligible, Eligible(err), "class %s", tc.class)
		assert.Equal(t, tc.class, ClassOf(err))
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Timeout(cause)

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Same(t, cause, ce.Cause)
	assert.True(t, errors.Is(err, cause))
}

func TestClassOfPlainError(t *testing.T) {
	plain := errors.New("unclassified")
	assert.Equal(t, ClassRecoverable, ClassOf(plain))
	assert.True(t, Eligible(plain))
}

func TestClassOfNil(t *testing.T) {
	assert.Equal(t, Class(""), ClassOf(nil))
	assert.False(t, Eligible(nil))
}
