package domain

import (
	"errors"
	"fmt"
)

// ErrConcurrencyConflict reports that a sweep was attempted while one
// is already in flight for the record. Callers skip it silently.
var ErrConcurrencyConflict = errors.New("collection already in flight")

// ValidationError reports input rejected before any subscription or
// upstream call was made. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError wraps a failure reported by, or while reaching, the
// node service. Transient failures (timeouts, connection resets,
// throttling) are retryable; everything else is surfaced once and the
// operation is not repeated.
type UpstreamError struct {
	Op        string // operation that failed, e.g. "getBalance"
	Transient bool
	Code      int    // upstream RPC error code, 0 if none
	Err       error  // underlying cause, may be nil
}

func (e *UpstreamError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	msg := fmt.Sprintf("upstream %s error in %s", kind, e.Op)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// InsufficientFundsError reports that an address cannot cover the
// sweep fee. At eligibility evaluation this is a normal stay-in-place
// outcome; during transaction construction it is permanent.
type InsufficientFundsError struct {
	Available int64 // base units
	Required  int64 // base units
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %d, required %d", e.Available, e.Required)
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Transient
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInsufficientFunds reports whether err is a funds shortfall.
func IsInsufficientFunds(err error) bool {
	var ie *InsufficientFundsError
	return errors.As(err, &ie)
}
