package types

import (
	"errors"
	"fmt"
)

// Routing errors. Callers match with errors.Is; wrap with %w to add context.
var (
	// ErrNoViableVenue means allocation could not place any quantity:
	// the candidate set was empty or every score degenerated to zero.
	ErrNoViableVenue = errors.New("no viable venue")

	// ErrUnsupportedOrderType means a venue cannot execute the order type.
	ErrUnsupportedOrderType = errors.New("unsupported order type")

	// ErrOracleUnavailable means the scoring oracle failed; allocation
	// falls back to equal weights instead of failing the cycle.
	ErrOracleUnavailable = errors.New("scoring oracle unavailable")
)

// ValidationError rejects an order at intake, before routing starts.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
