package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidOrExpired   = errors.New("invalid or expired code")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidAmount      = NewValidationError("amount", "amount must be a non-negative decimal with at most two places")
	ErrInvalidMonth       = NewValidationError("month", "month must be formatted as YYYY-MM")
)

// ValidationError reports missing or malformed input. No mutation is attempted
// when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
