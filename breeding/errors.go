/*
errors.go - Centralized error types for the breeding engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations wrap driver errors into these so that callers
  (HTTP handlers, jobs) can classify failures with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation  - Reproductive rule violations (carries the full result)
  2. Invalid data - Malformed input or numeric invariant breaches
  3. Not found   - Referenced entity does not exist
  4. Immutable   - Edit/delete refused by lifecycle rules
  5. Dependents  - Delete refused because other records reference the entity
  6. Conflict    - Unique-key collisions (ear tags)

SEE ALSO:
  - api/errors.go: HTTP status mapping
*/
package breeding

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a reproductive rule rejects a registration.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidData is returned for malformed input or a broken numeric invariant.
	ErrInvalidData = errors.New("invalid data")

	// ErrImmutable is returned when an entity's lifecycle forbids the edit or delete.
	ErrImmutable = errors.New("entity is immutable")

	// ErrHasDependents is returned when deleting an entity other records reference.
	ErrHasDependents = errors.New("entity has dependents")

	// ErrConflict is returned on unique-key collisions.
	ErrConflict = errors.New("conflict")

	// ErrLockTimeout is returned when the per-sow lock cannot be acquired.
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a *NotFoundError.
func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError carries the validator result that rejected an operation.
type ValidationError struct {
	Operation string
	Result    ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, strings.Join(e.Result.Errors, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidDataError describes a rejected field.
type InvalidDataError struct {
	Field  string
	Reason string
}

func (e *InvalidDataError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InvalidDataError) Unwrap() error { return ErrInvalidData }

// Invalid builds an *InvalidDataError with a formatted reason.
func Invalid(field, format string, args ...any) error {
	return &InvalidDataError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ImmutableError explains why an entity cannot be changed.
type ImmutableError struct {
	Entity string
	ID     int64
	Reason string
}

func (e *ImmutableError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, e.Reason)
}

func (e *ImmutableError) Unwrap() error { return ErrImmutable }

// DependentsError names the dependent type that blocks a delete.
type DependentsError struct {
	Entity    string
	ID        int64
	Dependent string
	Count     int
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("cannot delete %s %d: %d associated %s record(s)",
		e.Entity, e.ID, e.Count, e.Dependent)
}

func (e *DependentsError) Unwrap() error { return ErrHasDependents }

// ConflictError reports a duplicate unique value.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrImmutable) ||
		errors.Is(err, ErrHasDependents) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
