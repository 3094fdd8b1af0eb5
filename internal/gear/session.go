package gear

import "time"

// sessionState is the protocol state of the session.
type sessionState uint8

const (
	stateIdle sessionState = iota
	stateAwaitingTransmitDone
)

func (s sessionState) String() string {
	if s == stateAwaitingTransmitDone {
		return "awaiting_transmit_done"
	}
	return "idle"
}

// sessionFlags is the bitset of transient session flags.
type sessionFlags uint16

const (
	flagResponseRequested sessionFlags = 1 << iota
	flagRepeatTimerRequested
	flagInitialiseWindow
	flagWriteMemoryEnabled
	flagDAPCSequence
	flagAppExtensionRequested
	flagForcedMessage
	flagBusPowerTest
)

func (f sessionFlags) has(flag sessionFlags) bool { return f&flag != 0 }
func (f *sessionFlags) set(flag sessionFlags)     { *f |= flag }
func (f *sessionFlags) clear(flag sessionFlags)   { *f &^= flag }

func (f *sessionFlags) assign(flag sessionFlags, on bool) {
	if on {
		f.set(flag)
		return
	}
	f.clear(flag)
}

// Status byte bits as reported by QUERY STATUS.
const (
	StatusGearFailure         byte = 0x01
	StatusLampFailure         byte = 0x02
	StatusLampOn              byte = 0x04
	StatusLimitError          byte = 0x08
	StatusFadeRunning         byte = 0x10
	StatusResetState          byte = 0x20
	StatusMissingShortAddress byte = 0x40
	StatusPowerCycleSeen      byte = 0x80
)

// Yes is the backward frame value for an affirmative answer.
const Yes byte = 0xFF

// Mask is the arc power and scene value meaning "no change".
const Mask byte = 0xFF

const (
	busFailureThreshold = 500 * time.Millisecond
	identifyDuration    = 10 * time.Second
	referenceDuration   = 15 * time.Second
)

// Session is the single mutable record shared by the resolver, the
// addressing engine and the fading engine. It lives from PowerOn until the
// process stops and is not safe for concurrent use.
type Session struct {
	frame    Frame
	previous Frame
	pending  Frame
	// pendingEntry is the resolved entry of the frame awaiting its repeat.
	pendingEntry *commandEntry

	state      sessionState
	response   byte
	flags      sessionFlags
	nextAction Action
	enabled    bool

	busDown    bool
	busFailure time.Duration

	params paramCache
	addr   addressing
	fade   fadeState

	dtr0, dtr1, dtr2  byte
	enabledDeviceType byte

	limitError     bool
	powerCycleSeen bool
	lampFailure    bool

	// memoryPrefetch holds the byte following the last READ MEMORY LOCATION.
	memoryPrefetch   byte
	memoryPrefetchOK bool

	identifyRemaining  time.Duration
	referenceRemaining time.Duration

	stats Stats

	rng   RandomSource
	sched Scheduler
	xcvr  Transceiver
	out   Output
}

// Stats counts processed events.
type Stats struct {
	FramesReceived  uint64
	FramesExecuted  uint64
	FramesIgnored   uint64
	RepeatsAccepted uint64
	RepeatsDropped  uint64
	Responses       uint64
}

func (s *Session) shortAddress() byte {
	return s.params.get(ParamShortAddress)
}

func (s *Session) hasShortAddress() bool {
	return s.shortAddress() <= MaxShortAddress
}

func (s *Session) deviceType() byte {
	return s.params.get(ParamDeviceType)
}

// reply queues a backward frame for the current command.
func (s *Session) reply(v byte) {
	s.response = v
	s.flags.set(flagResponseRequested)
}

// replyIf answers YES when cond holds; otherwise the command stays silent.
func (s *Session) replyIf(cond bool) {
	if cond {
		s.reply(Yes)
	}
}

func (s *Session) windowOpen() bool {
	return s.flags.has(flagInitialiseWindow)
}

// statusByte assembles the QUERY STATUS answer.
func (s *Session) statusByte() byte {
	var b byte
	if s.lampFailure {
		b |= StatusLampFailure
	}
	if s.fade.current > 0 {
		b |= StatusLampOn
	}
	if s.limitError {
		b |= StatusLimitError
	}
	if s.fade.running {
		b |= StatusFadeRunning
	}
	if s.params.isDefault() {
		b |= StatusResetState
	}
	if !s.hasShortAddress() {
		b |= StatusMissingShortAddress
	}
	if s.powerCycleSeen {
		b |= StatusPowerCycleSeen
	}
	return b
}

// failureStatus assembles the DT6 QUERY FAILURE STATUS answer.
func (s *Session) failureStatus() byte {
	var b byte
	if s.lampFailure {
		b |= 0x02 // open circuit
	}
	return b
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	State             string
	Enabled           bool
	ActualLevel       byte
	RequestedLevel    byte
	FadeRunning       bool
	RateMode          bool
	Status            byte
	ShortAddress      byte
	Groups            uint16
	RandomAddress     uint32
	SearchAddress     uint32
	CompareEnabled    bool
	Withdrawn         bool
	PhysicalSelection PhysicalSelection
	InitialiseWindow  bool
	WriteEnabled      bool
	DAPCSequence      bool
	DTR0, DTR1, DTR2  byte
	MemoryPrefetch    byte
	MemoryPrefetchOK  bool
	Identifying       bool
	ReferenceRunning  bool
	BusDown           bool
	LampFailure       bool
	LimitError        bool
	OutputHundredths  uint16
	Params            [ParamCount]byte
	Stats             Stats
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		State:             s.state.String(),
		Enabled:           s.enabled,
		ActualLevel:       s.fade.current,
		RequestedLevel:    s.fade.requested,
		FadeRunning:       s.fade.running,
		RateMode:          s.fade.rateMode,
		Status:            s.statusByte(),
		ShortAddress:      s.shortAddress(),
		Groups:            s.params.groups(),
		RandomAddress:     s.params.randomAddress(),
		SearchAddress:     s.addr.search,
		CompareEnabled:    s.addr.compare,
		Withdrawn:         s.addr.withdrawn,
		PhysicalSelection: s.addr.physical,
		InitialiseWindow:  s.windowOpen(),
		WriteEnabled:      s.flags.has(flagWriteMemoryEnabled),
		DAPCSequence:      s.flags.has(flagDAPCSequence),
		DTR0:              s.dtr0,
		DTR1:              s.dtr1,
		DTR2:              s.dtr2,
		MemoryPrefetch:    s.memoryPrefetch,
		MemoryPrefetchOK:  s.memoryPrefetchOK,
		Identifying:       s.identifyRemaining > 0,
		ReferenceRunning:  s.referenceRemaining > 0,
		BusDown:           s.busDown,
		LampFailure:       s.lampFailure,
		LimitError:        s.limitError,
		OutputHundredths:  s.levelToOutput(s.fade.current),
		Params:            s.params.values,
		Stats:             s.stats,
	}
}
