package services

import (
	"errors"
	"fmt"

	"github.com/phara0n/ecarv1/internal/validation"
)

var (
	// ErrNotFound wraps missing customers, vehicles, repairs or invoices.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks uniqueness violations on user-supplied fields.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries field-level violations; the request is never
// partially applied when one is returned.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d violation(s)", len(e.Violations))
}

// NewValidationError builds a ValidationError from a violations map.
func NewValidationError(v validation.Violations) *ValidationError {
	return &ValidationError{Violations: v}
}

// AsValidation unwraps err into a *ValidationError if possible.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
