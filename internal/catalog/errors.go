package catalog

import (
	"errors"
	"fmt"
)

// Validation failure kinds. Match them with errors.Is.
var (
	ErrEmptyTitle             = errors.New("empty title")
	ErrInvalidTempo           = errors.New("invalid tempo")
	ErrDuplicateOrder         = errors.New("duplicate order")
	ErrImageLimitExceeded     = errors.New("image limit exceeded")
	ErrImageCompressionFailed = errors.New("image compression failed")
	ErrInvalidSection         = errors.New("invalid section")
	ErrMissingSong            = errors.New("missing song reference")
)

// ValidationError reports which record failed which check.
type ValidationError struct {
	Entity string
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Entity, e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func invalid(entity string, kind error, format string, args ...any) error {
	return &ValidationError{Entity: entity, Err: kind, Detail: fmt.Sprintf(format, args...)}
}
