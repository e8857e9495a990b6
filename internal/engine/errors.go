package engine

import "errors"

// Placement rejections. Each maps to the message sent back in betResult.
var (
	ErrUnknownMarket       = errors.New("unknown market")
	ErrInvalidDirection    = errors.New("invalid bet direction")
	ErrInvalidAmount       = errors.New("invalid bet amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownSession      = errors.New("unknown session")
)

// ErrStopped is returned by requests made before Start or after the engine
// has stopped.
var ErrStopped = errors.New("engine stopped")

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("engine already started")

// rejectionMessage returns the client-facing text for a placement rejection.
func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnknownMarket):
		return "Unknown market"
	case errors.Is(err, ErrInvalidDirection):
		return "Invalid bet direction"
	case errors.Is(err, ErrInvalidAmount):
		return "Invalid bet amount"
	case errors.Is(err, ErrInsufficientBalance):
		return "Insufficient balance"
	case errors.Is(err, ErrUnknownSession):
		return "Unknown session"
	default:
		return "Bet rejected"
	}
}

// rejectionLabel is the metrics label for a rejection.
func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrUnknownMarket):
		return "unknown_market"
	case errors.Is(err, ErrInvalidDirection):
		return "invalid_direction"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrUnknownSession):
		return "unknown_session"
	default:
		return "other"
	}
}
