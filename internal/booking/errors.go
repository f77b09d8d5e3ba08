package booking

import "errors"

// Selection misuse.  The pipeline checks guards before touching the
// selection, so these surface only when the selection API is called
// directly with out-of-order or out-of-range values.
var (
	ErrDependencyViolation  = errors.New("selection dependency violation")
	ErrOutOfRange           = errors.New("quantity out of range")
	ErrIncompleteSelection  = errors.New("incomplete selection")
	ErrUnknownSection       = errors.New("section not found on listing")
	ErrSectionNotSelectable = errors.New("section is not selectable")
)

// Pipeline misuse.  Recoverable situations (guard failures, expiry,
// declined payments) are reported through View.Notice instead.
var (
	ErrInvalidTransition = errors.New("event not allowed in current step")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrUnknownStep       = errors.New("unknown step")
	ErrMissingPayload    = errors.New("event payload missing")
	ErrPaymentPending    = errors.New("payment already in progress")
	ErrSessionClosed     = errors.New("session closed")
)
