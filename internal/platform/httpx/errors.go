package httpx

import (
	"errors"
	"net/http"

	"github.com/fundline/fundline/internal/shared"
)

// RespondError maps domain errors onto RFC7807 responses. The taxonomy is
// deliberately flat: everything below is a 4xx the client must act on, there
// is no retryable class at this layer.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusUnprocessableEntity, "Invalid State Transition", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrImmutableState):
		Problem(w, http.StatusUnprocessableEntity, "Immutable Record", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Already Processed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
