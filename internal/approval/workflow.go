package approval

import (
	"fmt"

	"github.com/fundline/fundline/internal/shared"
)

// nextStatus validates one workflow step. Credited is reachable only when
// creditable (bills); paying from credited is likewise bill-only.
func nextStatus(current Status, action Action, creditable bool) (Status, error) {
	switch action {
	case ActionApprove:
		if current == StatusPending {
			return StatusApproved, nil
		}
	case ActionReject:
		if current == StatusPending {
			return StatusRejected, nil
		}
	case ActionCredit:
		if creditable && current == StatusApproved {
			return StatusCredited, nil
		}
	case ActionPay:
		if current == StatusApproved || (creditable && current == StatusCredited) {
			return StatusPaid, nil
		}
	default:
		return "", fmt.Errorf("approval: unknown action %q: %w", action, shared.ErrValidation)
	}
	return "", fmt.Errorf("approval: %s from %s: %w", action, current, shared.ErrInvalidState)
}
