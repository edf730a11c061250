package domain

import "errors"

var (
	// ErrNotFound is returned when a repair cannot be found.
	ErrNotFound = errors.New("repair not found")

	// ErrForbidden is returned when the actor has the wrong role or is
	// not the assigned party on the repair.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when a status guard fails.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyClaimed is returned when a claim loses the race: another
	// technician already holds the repair or it moved past PENDING.
	ErrAlreadyClaimed = errors.New("repair already claimed")

	// ErrVersionConflict is returned when a conditional step write raced
	// a concurrent update and must be retried against fresh state.
	ErrVersionConflict = errors.New("concurrent update conflict")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
