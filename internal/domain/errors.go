package domain

import "errors"

// Domain errors
var (
	ErrInvalidName     = errors.New("playerName is required and must not be empty")
	ErrInvalidTime     = errors.New("time must be a positive number")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidCategory = errors.New("unknown leaderboard category")
	ErrInternalError   = errors.New("internal server error")
)

// IsValidationError checks if an error is a client-input error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidTime) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidCategory)
}
