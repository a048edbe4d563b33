package types

import "errors"

// Domain error taxonomy. Handlers translate these into structured API
// responses; nothing below this layer ever reaches a client as a raw
// store error.
var (
	// ErrInvalidInput marks a malformed quantity or price. The caller
	// corrects the request and resubmits.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientHoldings marks a SELL whose quantity exceeds the
	// derived executed position for that symbol.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrPersistenceConflict marks store contention that survived the
	// internal retry loop. Transient; never implies data loss.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// ErrPriceUnavailable marks a quote that could not be fetched for a
	// symbol. The settlement sweep skips the affected row and moves on.
	ErrPriceUnavailable = errors.New("price unavailable")
)
