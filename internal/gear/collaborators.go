package gear

import "time"

// ParameterStore persists parameter bytes and memory banks.
//
// Implementations are expected to be infallible from the core's point of
// view: failures are handled (and logged) inside the store.
type ParameterStore interface {
	// Get returns the stored value of a parameter.
	Get(id ParamID) byte

	// Put stores a parameter value.
	Put(id ParamID, value byte)

	// Default returns the factory default of a parameter.
	Default(id ParamID) byte

	// ReadMemory returns one byte of a memory bank. ok is false if the
	// location is not implemented.
	ReadMemory(bank, addr byte) (value byte, ok bool)

	// WriteMemory writes one byte of a memory bank and reports success.
	WriteMemory(bank, addr, value byte) bool

	// ResetMemory restores a memory bank to its defaults. Bank 0 is never reset.
	ResetMemory(bank byte)
}

// RandomSource yields independent random bytes for RANDOMISE.
type RandomSource interface {
	RandomByte() byte
}

// Scheduler arms and cancels long-running timers on behalf of the core.
// Short repeat/DAPC windows are requested through Actions instead.
type Scheduler interface {
	Arm(id TimerID)
	Cancel(id TimerID)
}

// Transceiver is the part of the physical layer the core drives directly.
type Transceiver interface {
	StopReceive()
}

// Output drives the light source.
type Output interface {
	// SetLightLevelPercent sets the output in hundredths of a percent (0-10000).
	SetLightLevelPercent(hundredths uint16)

	// LampOn reports whether the lamp is actually emitting light.
	LampOn() bool
}

// TimerID names a timer duration class.
type TimerID uint8

// Timer classes.
const (
	// TimerRepeat bounds the window for a repeated configuration command.
	TimerRepeat TimerID = iota + 1

	// TimerDAPC bounds a DAPC sequence between two arc power frames.
	TimerDAPC

	// TimerInitialise bounds the commissioning window opened by INITIALISE.
	TimerInitialise
)

// Duration returns how long the timer runs.
func (t TimerID) Duration() time.Duration {
	switch t {
	case TimerRepeat:
		return 100 * time.Millisecond
	case TimerDAPC:
		return 200 * time.Millisecond
	case TimerInitialise:
		return 15 * time.Minute
	default:
		return 0
	}
}

// String returns the timer name.
func (t TimerID) String() string {
	switch t {
	case TimerRepeat:
		return "repeat"
	case TimerDAPC:
		return "dapc"
	case TimerInitialise:
		return "initialise"
	default:
		return "unknown"
	}
}

// Action tells the caller what to do after an event has been processed.
type Action uint8

// Actions returned from event handling.
const (
	// NoAction means nothing is required; reception stays armed.
	NoAction Action = iota

	// TransmitResponse means Result.Response must be sent as a backward frame,
	// followed by HandleTransmitDone.
	TransmitResponse

	// EnableReceive means reception must be re-armed.
	EnableReceive

	// RequestTimer100ms asks for a TimerRepeat expiry.
	RequestTimer100ms

	// RequestTimer200ms asks for a TimerDAPC expiry.
	RequestTimer200ms

	// ClearAllTimers cancels pending TimerRepeat and TimerDAPC expiries.
	ClearAllTimers
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case NoAction:
		return "none"
	case TransmitResponse:
		return "transmit_response"
	case EnableReceive:
		return "enable_receive"
	case RequestTimer100ms:
		return "request_timer_100ms"
	case RequestTimer200ms:
		return "request_timer_200ms"
	case ClearAllTimers:
		return "clear_all_timers"
	default:
		return "unknown"
	}
}

// Result is the outcome of one event.
type Result struct {
	Action   Action
	Response byte
}
