package dali

import "errors"

// Domain errors for the runtime.
var (
	// ErrTransportClosed is returned when transmitting on a closed transceiver.
	ErrTransportClosed = errors.New("dali: transport closed")

	// ErrInvalidPayload is returned when a transport message cannot be decoded.
	ErrInvalidPayload = errors.New("dali: invalid payload")

	// ErrAlreadyRunning is returned by Runner.Run when called twice.
	ErrAlreadyRunning = errors.New("dali: runner already running")
)
