package gear

import "errors"

// Domain errors for the gear package. Frame handling itself never fails;
// these surface only at construction and decoding boundaries.
var (
	// ErrInvalidFrame is returned when transport bytes cannot form a forward frame.
	ErrInvalidFrame = errors.New("gear: invalid frame")

	// ErrMissingCollaborator is returned by New when a required dependency is nil.
	ErrMissingCollaborator = errors.New("gear: missing collaborator")
)
