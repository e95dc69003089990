package observability

import (
	"errors"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

// Outcome maps an error onto the command outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, shared.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, shared.ErrStateConflict):
		return OutcomeConflict
	case errors.Is(err, shared.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
