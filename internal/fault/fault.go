// Package fault defines the error taxonomy shared by the triage core.
//
// Each failure class is a pointer struct so callers can branch with
// errors.As and still read the offending field, therapist or alert.
package fault

import "fmt"

// ErrValidation indicates malformed or out-of-range input. It is always
// raised before any scoring happens.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Invalid is shorthand for building an ErrValidation.
func Invalid(field, format string, args ...any) error {
	return &ErrValidation{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrCapacityExceeded indicates a therapist has no free slot. It is
// expected and recoverable: callers fall back to the next candidate.
type ErrCapacityExceeded struct {
	TherapistID string
	Max         int
}

func (e *ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("therapist %s is at capacity (%d)", e.TherapistID, e.Max)
}

// ErrNoCapacity is returned when automatic assignment exhausted every
// ranked candidate. The patient has been queued for manual review.
type ErrNoCapacity struct {
	PatientID string
	Tried     []string
}

func (e *ErrNoCapacity) Error() string {
	return "no capacity available — queued for manual review"
}

// ErrInvalidTransition indicates a lifecycle operation that is not allowed
// from the entity's current state. It is never auto-corrected.
type ErrInvalidTransition struct {
	Entity string
	ID     string
	From   string
	Action string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s %s %s: currently %s", e.Action, e.Entity, e.ID, e.From)
}

// ErrInvariantViolation signals a programmer error such as releasing
// capacity that was never reserved. It must not be swallowed.
type ErrInvariantViolation struct {
	Component string
	Detail    string
}

func (e *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Component, e.Detail)
}

// ErrNotFound indicates an unknown identifier.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
