package scheduling

import (
	"errors"
	"fmt"
)

// Kind classifies a scheduling failure. The HTTP layer maps kinds onto
// status codes; the core never deals in HTTP.
type Kind string

const (
	KindNotFound                Kind = "not_found"
	KindInvalidState            Kind = "invalid_state"
	KindExpired                 Kind = "expired"
	KindConcurrencyConflict     Kind = "concurrency_conflict"
	KindTemporalWindowViolation Kind = "temporal_window_violation"
	KindPaymentNotApproved      Kind = "payment_not_approved"
	KindRecurrenceLimitReached  Kind = "recurrence_limit_reached"
	KindPermissionDenied        Kind = "permission_denied"
)

// Error is a kind-tagged scheduling failure. Reason narrows the kind for
// callers that need to distinguish, say, TooCloseToStart from TooFarInFuture.
// Entity names the aggregate a concurrency conflict was detected on.
type Error struct {
	Kind   Kind
	Reason string
	Entity string
	msg    string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return string(e.Kind)
}

// NewError builds a kind-tagged error.
func NewError(kind Kind, reason, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Reason: reason,
		msg:    fmt.Sprintf(format, args...),
	}
}

// Reasons further qualifying an error kind.
const (
	ReasonTooCloseToStart     = "too_close_to_start"
	ReasonTooFarInFuture      = "too_far_in_future"
	ReasonTooEarlyForNoShow   = "too_early_for_no_show"
	ReasonHoldNotFound        = "hold_not_found"
	ReasonHoldInvalidState    = "hold_invalid_state"
	ReasonHoldExpired         = "hold_expired"
	ReasonHoldAlreadyUsed     = "hold_already_used"
	ReasonBookingInvalidState = "booking_invalid_state"
	ReasonVersionMismatch     = "version_mismatch"
	ReasonSlotTaken           = "slot_taken"
)

// KindOf extracts the scheduling kind from an error chain. Unknown errors
// report an empty kind.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Common constructors used across the validation service and use-cases.

func errHoldNotFound() *Error {
	return NewError(KindNotFound, ReasonHoldNotFound, "hold not found")
}

func errBookingNotFound() *Error {
	return NewError(KindNotFound, "booking_not_found", "booking not found")
}

func errConcurrencyConflict(entity string) *Error {
	err := NewError(KindConcurrencyConflict, ReasonVersionMismatch, "%s was modified concurrently", entity)
	err.Entity = entity
	return err
}
