// Package errs defines the G6 error taxonomy used to classify failures
// coming out of the provider layer and pipeline stages (spec §7).
//
// Every classified error wraps an underlying cause and reports whether it
// is eligible for retry. Stage-local code converts these into
// partial_reason tokens instead of aborting; only process/cycle-fatal
// errors are allowed to unwind past the pipeline boundary.
package errs

import (
	"errors"
	"fmt"
)

// Class is a closed set of error categories.
type Class string

const (
	ClassAuth        Class = "auth"        // fatal, never retried
	ClassTimeout     Class = "timeout"     // recoverable
	ClassRateLimited Class = "rate_limited" // recoverable, backoff enforced by caller
	ClassFatal       Class = "fatal"       // recoverable=false
	ClassRecoverable Class = "recoverable" // generic retry-eligible
	ClassData        Class = "data"        // validation failure, never retried, never fatal
	ClassInternal    Class = "internal"    // bug, logged with stack, cycle continues
)

// ClassifiedError associates a Class with an underlying cause.
type ClassifiedError struct {
	Class Class
	Cause error
}

func (e *ClassifiedError) Error() string {
	if e.Cause == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Cause)
}

func (e *ClassifiedError) Unwrap() error { return e.Cause }

// Eligible reports whether an error of this class may be retried.
func (e *ClassifiedError) Eligible() bool {
	switch e.Class {
	case ClassTimeout, ClassRateLimited, ClassRecoverable:
		return true
	default:
		return false
	}
}

// Wrap classifies an error. A nil cause produces a nil error.
func Wrap(class Class, cause error) error {
	if cause == nil {
		return nil
	}
	return &ClassifiedError{Class: class, Cause: cause}
}

// Auth wraps cause as a fatal authentication error.
func Auth(cause error) error { return Wrap(ClassAuth, cause) }

// Timeout wraps cause as a recoverable timeout.
func Timeout(cause error) error { return Wrap(ClassTimeout, cause) }

// RateLimited wraps cause as a recoverable rate-limit signal.
func RateLimited(cause error) error { return Wrap(ClassRateLimited, cause) }

// Fatal wraps cause as a non-retryable fatal error.
func Fatal(cause error) error { return Wrap(ClassFatal, cause) }

// Recoverable wraps cause as a generically retryable error.
func Recoverable(cause error) error { return Wrap(ClassRecoverable, cause) }

// Data wraps cause as a validation failure (never retried, never aborts).
func Data(cause error) error { return Wrap(ClassData, cause) }

// Internal wraps cause as an internal bug; caller should log with stack
// and continue to the next cycle.
func Internal(cause error) error { return Wrap(ClassInternal, cause) }

// ClassOf extracts the Class of err, defaulting to ClassRecoverable when
// err is not a *ClassifiedError (so unexpected errors still get a retry
// opportunity rather than being silently swallowed).
func ClassOf(err error) Class {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if err == nil {
		return ""
	}
	return ClassRecoverable
}

// Eligible reports whether err should be retried by a generic retry loop.
func Eligible(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Eligible()
	}
	return err != nil
}
