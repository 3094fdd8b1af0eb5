package paramstore

import "errors"

// Domain errors for the paramstore package.
var (
	// ErrInvalidIdentity is returned when an Identity cannot describe a device.
	ErrInvalidIdentity = errors.New("paramstore: invalid identity")

	// ErrCorruptBank is returned when a persisted memory bank cannot be decoded.
	ErrCorruptBank = errors.New("paramstore: corrupt memory bank")
)
