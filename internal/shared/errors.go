package shared

import "errors"

// Error taxonomy shared by every engine package. Package level errors wrap one
// of these with %w so callers and the HTTP layer can classify them with
// errors.Is.
var (
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrStateConflict marks a command that is illegal for the aggregate's current state.
	ErrStateConflict = errors.New("state conflict")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrStorage indicates the backing store failed; the whole command may be retried.
	ErrStorage = errors.New("storage unavailable")
)
