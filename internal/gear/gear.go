package gear

import (
	"fmt"
	"sync"
	"time"
)

// Options wires a Gear to its collaborators.
type Options struct {
	// Store persists parameters and memory banks (required).
	Store ParameterStore

	// Random feeds RANDOMISE (required).
	Random RandomSource

	// Output drives the light source (required).
	Output Output

	// Scheduler runs the 15-minute commissioning timer (optional).
	Scheduler Scheduler

	// Transceiver is stopped when the gear is disabled (optional).
	Transceiver Transceiver
}

// Gear is one DALI control gear. It serialises access to its Session.
type Gear struct {
	mu      sync.Mutex
	session Session
}

// New creates a Gear. Call PowerOn before feeding events.
//
// Returns:
//   - *Gear: the control gear, powered off
//   - error: ErrMissingCollaborator if a required collaborator is nil
func New(opts Options) (*Gear, error) {
	switch {
	case opts.Store == nil:
		return nil, fmt.Errorf("%w: parameter store", ErrMissingCollaborator)
	case opts.Random == nil:
		return nil, fmt.Errorf("%w: random source", ErrMissingCollaborator)
	case opts.Output == nil:
		return nil, fmt.Errorf("%w: output", ErrMissingCollaborator)
	}

	g := &Gear{}
	g.session.params.store = opts.Store
	g.session.rng = opts.Random
	g.session.out = opts.Output
	g.session.sched = opts.Scheduler
	g.session.xcvr = opts.Transceiver
	return g, nil
}

// PowerOn loads parameters from the store and applies the power-on level.
func (g *Gear) PowerOn() Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.powerOn()
}

// HandleFrame processes a received forward frame.
func (g *Gear) HandleFrame(f Frame) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.handleFrame(f)
}

// HandleTransmitDone signals that the queued backward frame was sent.
func (g *Gear) HandleTransmitDone() Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.handleTransmitDone()
}

// HandleTimeout signals the expiry of a timer previously requested through
// an Action or armed on the Scheduler.
func (g *Gear) HandleTimeout(id TimerID) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.handleTimeout(id)
}

// Tick advances the output by elapsed. It fades, tracks lamp and bus
// failures and runs down identify and reference timers.
func (g *Gear) Tick(elapsed time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.tick(elapsed)
}

// SetBusPower reports the bus supply state.
func (g *Gear) SetBusPower(up bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.setBusPower(up)
}

// Enable leaves off mode.
func (g *Gear) Enable() Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.enable()
}

// Disable enters off mode: reception stops, output goes to zero and all
// pending timers are dropped. Events are ignored until Enable.
func (g *Gear) Disable() Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.disable()
}

// ForceNext lets the next repeat-required command execute on first receipt.
func (g *Gear) ForceNext() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.flags.set(flagForcedMessage)
}

// Snapshot returns a copy of the observable state.
func (g *Gear) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.snapshot()
}

func (s *Session) powerOn() Result {
	s.params.load()
	s.state = stateIdle
	s.flags = 0
	s.pendingEntry = nil
	s.addr = addressing{search: SearchAddressReset}
	s.fade = fadeState{}
	s.powerCycleSeen = true
	s.enabled = true

	level := s.params.get(ParamPowerOnLevel)
	if level == Mask {
		level = s.params.get(ParamLastActiveLevel)
	}
	level, _ = s.clampLevel(level)
	s.fade.requested = level
	s.fade.current = level
	s.applyOutput()
	s.updateLampFailure()
	return Result{Action: EnableReceive}
}

func (s *Session) tick(elapsed time.Duration) {
	if !s.enabled || elapsed <= 0 {
		return
	}

	if s.busDown {
		s.busFailure += elapsed
		if s.flags.has(flagBusPowerTest) && s.busFailure >= busFailureThreshold {
			s.flags.clear(flagBusPowerTest)
			s.applySystemFailureLevel()
		}
	}

	s.tickFade(elapsed)
	s.updateLampFailure()
	s.tickPhysicalSelection()

	s.identifyRemaining = max(s.identifyRemaining-elapsed, 0)
	s.referenceRemaining = max(s.referenceRemaining-elapsed, 0)
}

func (s *Session) updateLampFailure() {
	s.lampFailure = s.fade.current > 0 && !s.out.LampOn()
}

func (s *Session) setBusPower(up bool) {
	if up {
		s.busDown = false
		s.busFailure = 0
		s.flags.clear(flagBusPowerTest)
		return
	}
	if s.busDown {
		return
	}
	s.busDown = true
	s.busFailure = 0
	s.flags.set(flagBusPowerTest)
}

func (s *Session) applySystemFailureLevel() {
	level := s.params.get(ParamSystemFailureLevel)
	if level == Mask {
		return
	}
	level, clamped := s.clampLevel(level)
	s.limitError = clamped
	s.setLevel(level)
}

func (s *Session) enable() Result {
	if s.enabled {
		return Result{Action: NoAction}
	}
	s.enabled = true
	s.state = stateIdle
	return Result{Action: EnableReceive}
}

func (s *Session) disable() Result {
	if s.xcvr != nil {
		s.xcvr.StopReceive()
	}
	s.clearPending()
	s.flags.clear(flagDAPCSequence | flagResponseRequested | flagForcedMessage)
	if s.windowOpen() {
		s.closeWindow()
		if s.sched != nil {
			s.sched.Cancel(TimerInitialise)
		}
	}
	s.setLevel(0)
	s.state = stateIdle
	s.enabled = false
	return Result{Action: ClearAllTimers}
}
