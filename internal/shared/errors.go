package shared

import "errors"

// Core error taxonomy. Services wrap these with context via
// fmt.Errorf("...: %w", Err...); handlers map them onto problem responses.
var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates a transition the state machine forbids.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrImmutableState indicates an edit against a finalized record.
	ErrImmutableState = errors.New("record is immutable in its current state")
	// ErrConflict indicates the operation clashes with existing records.
	ErrConflict = errors.New("conflict with existing records")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor's role lacks the capability.
	ErrForbidden = errors.New("forbidden")
)

// UserSafeMessage returns a message safe to surface to API clients.
// Internal errors are collapsed to a generic string.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrImmutableState),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden):
		return err.Error()
	default:
		return "internal error"
	}
}
