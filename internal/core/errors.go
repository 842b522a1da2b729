package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every operation returns one of these classes so callers can
// branch with errors.Is / errors.As instead of string matching.
var (
	// ErrValidation is the class marker for malformed input. Concrete
	// validation failures are ValidationError values that match it.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers absent entities and entities owned by someone else.
	// Cross-owner reads fail closed as not-found, never as forbidden.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers invariant violations: deleting a source with
	// history, deleting a referenced category, concurrent-write version
	// mismatches.
	ErrConflict = errors.New("conflict")

	// ErrBackendUnavailable means the storage boundary could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Common validation sentinels, matched through ErrValidation.
var (
	ErrEmptyName       = &ValidationError{Field: "name", Reason: "must not be empty"}
	ErrInvalidAmount   = &ValidationError{Field: "amount", Reason: "must be a positive decimal"}
	ErrInvalidCurrency = &ValidationError{Field: "currency", Reason: "must be a 3-letter code"}
	ErrInvalidDate     = &ValidationError{Field: "date", Reason: "must be a valid calendar date"}
	ErrSameSource      = &ValidationError{Field: "destination_source_id", Reason: "must differ from source_id"}
)

// ValidationError is a malformed-input error tied to one field. It never
// corresponds to a partially applied write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validationf builds a ValidationError with a formatted reason.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CompensationFailure is fatal: a multi-step operation failed partway and
// rolling back the already-applied steps failed too. The entities in Op may
// be inconsistent and need manual reconciliation; callers must surface this
// loudly and never retry blindly.
type CompensationFailure struct {
	Op              string
	Cause           error
	CompensationErr error
}

func (e *CompensationFailure) Error() string {
	return fmt.Sprintf("%s: compensation failed after %v: %v", e.Op, e.Cause, e.CompensationErr)
}

func (e *CompensationFailure) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err carries a CompensationFailure anywhere in its
// chain.
func IsFatal(err error) bool {
	var cf *CompensationFailure
	return errors.As(err, &cf)
}
