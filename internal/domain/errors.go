package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidOrder       = errors.New("invalid_order")
	ErrUnknownInstrument  = errors.New("unknown_instrument")
	ErrUnknownAccount     = errors.New("unknown_account")
	ErrAccountExists      = errors.New("account_already_exists")
	ErrInstrumentExists   = errors.New("instrument_already_exists")
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrInsufficientFunds  = errors.New("insufficient_funds")
	ErrInsufficientShares = errors.New("insufficient_shares")
	ErrEngineInternal     = errors.New("engine_internal")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
