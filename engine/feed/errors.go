package feed

import (
	"errors"
	"fmt"
)

// Sentinel errors for item validation failures.
var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrMissingTitle    = errors.New("missing title")
	ErrMissingURL      = errors.New("missing url")
	ErrMissingDate     = errors.New("missing publish date")
	ErrFutureDate      = errors.New("publish date in the future")
	ErrNegativeScore   = errors.New("negative traction score")
	ErrDuplicateItemID = errors.New("duplicate item id")
	ErrCountMismatch   = errors.New("total_items does not match items length")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
