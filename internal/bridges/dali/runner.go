package dali

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

// Runner defaults.
const (
	// defaultTickInterval is how often the fading engine is advanced.
	defaultTickInterval = 10 * time.Millisecond

	// eventBuffer absorbs bursts of frames while a response is transmitted.
	eventBuffer = 64
)

type eventKind uint8

const (
	eventFrame eventKind = iota + 1
	eventTimeout
	eventBusPower
	eventEnable
	eventDisable
)

type event struct {
	kind  eventKind
	frame gear.Frame
	timer gear.TimerID
	gen   uint64
	up    bool
}

// Observer is handed a fresh snapshot after every processed event and tick.
// Observe runs on the Runner goroutine and should return quickly.
type Observer interface {
	Observe(now time.Time, snap gear.Snapshot)
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	// GearID tags log entries.
	GearID string

	// Store, Random and Output are handed to the gear core (required).
	Store  gear.ParameterStore
	Random gear.RandomSource
	Output gear.Output

	// Transceiver connects the gear to the bus (required).
	Transceiver Transceiver

	// TickInterval drives the fading engine. Default: 10ms.
	TickInterval time.Duration

	// Observers are notified after every event and tick.
	Observers []Observer
}

// Runner owns one gear.Gear and feeds it from a single goroutine.
//
// Received frames, bus power changes and timer expiries are posted to an
// event channel; Run drains it, calls the core and carries out the
// returned Actions on the transceiver and the timer set.
//
// Thread Safety: Frame, BusPower, Enable and Disable may be called from any
// goroutine. Run must be called once.
type Runner struct {
	gearID    string
	gear      *gear.Gear
	xcvr      Transceiver
	timers    *timerSet
	tick      time.Duration
	observers []Observer

	events  chan event
	done    chan struct{}
	running atomic.Bool

	logger Logger
}

// NewRunner creates a Runner and the gear it drives. The gear's Scheduler
// is the Runner's timer set.
//
// Returns:
//   - *Runner: ready to Run
//   - error: if the transceiver is missing or the core rejects the collaborators
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Transceiver == nil {
		return nil, fmt.Errorf("%w: transceiver", gear.ErrMissingCollaborator)
	}

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}

	r := &Runner{
		gearID:    cfg.GearID,
		xcvr:      cfg.Transceiver,
		tick:      tick,
		observers: cfg.Observers,
		events:    make(chan event, eventBuffer),
		done:      make(chan struct{}),
		logger:    nopLogger{},
	}
	r.timers = newTimerSet(r.postTimeout)

	g, err := gear.New(gear.Options{
		Store:       cfg.Store,
		Random:      cfg.Random,
		Output:      cfg.Output,
		Scheduler:   r.timers,
		Transceiver: cfg.Transceiver,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gear: %w", err)
	}
	r.gear = g
	return r, nil
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Gear returns the driven gear. Only Snapshot may be called on it from
// outside the Runner goroutine.
func (r *Runner) Gear() *gear.Gear {
	return r.gear
}

// Frame implements FrameSink.
func (r *Runner) Frame(f gear.Frame) {
	r.post(event{kind: eventFrame, frame: f})
}

// BusPower implements FrameSink.
func (r *Runner) BusPower(up bool) {
	r.post(event{kind: eventBusPower, up: up})
}

// Enable asks the gear to leave off mode.
func (r *Runner) Enable() {
	r.post(event{kind: eventEnable})
}

// Disable puts the gear into off mode.
func (r *Runner) Disable() {
	r.post(event{kind: eventDisable})
}

func (r *Runner) postTimeout(id gear.TimerID, gen uint64) {
	r.post(event{kind: eventTimeout, timer: id, gen: gen})
}

func (r *Runner) post(ev event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// Run powers the gear on, starts the transceiver and processes events
// until ctx is cancelled.
//
// Returns:
//   - error: nil on cancellation, or why the runner could not start
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(r.done)
	defer r.timers.stopAll()

	if err := r.xcvr.Start(ctx, r); err != nil {
		return fmt.Errorf("starting transceiver: %w", err)
	}

	r.apply(ctx, r.gear.PowerOn())
	snap := r.gear.Snapshot()
	r.logger.Info("gear powered on",
		"gear_id", r.gearID,
		"short_address", snap.ShortAddress,
		"level", snap.ActualLevel)
	r.notify(time.Now(), snap)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped", "gear_id", r.gearID)
			return nil

		case ev := <-r.events:
			r.handle(ctx, ev)
			r.notify(time.Now(), r.gear.Snapshot())

		case now := <-ticker.C:
			r.gear.Tick(now.Sub(last))
			last = now
			r.notify(now, r.gear.Snapshot())
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventFrame:
		r.logger.Debug("frame received",
			"gear_id", r.gearID,
			"frame", ev.frame.String(),
			"command", gear.Describe(ev.frame))
		r.apply(ctx, r.gear.HandleFrame(ev.frame))

	case eventTimeout:
		if !r.timers.current(ev.timer, ev.gen) {
			return // Re-armed or cancelled after firing
		}
		r.apply(ctx, r.gear.HandleTimeout(ev.timer))

	case eventBusPower:
		r.logger.Info("bus power changed", "gear_id", r.gearID, "up", ev.up)
		r.gear.SetBusPower(ev.up)

	case eventEnable:
		r.apply(ctx, r.gear.Enable())

	case eventDisable:
		r.logger.Info("gear disabled", "gear_id", r.gearID)
		r.apply(ctx, r.gear.Disable())
	}
}

// apply carries out an Action. A transmitted response is followed by
// HandleTransmitDone, whose Action is applied in turn.
func (r *Runner) apply(ctx context.Context, res gear.Result) {
	for {
		switch res.Action {
		case gear.TransmitResponse:
			if err := r.xcvr.Transmit(ctx, res.Response); err != nil {
				r.logger.Warn("backward frame not sent",
					"gear_id", r.gearID,
					"response", encodeBackward(res.Response),
					"error", err)
			}
			res = r.gear.HandleTransmitDone()
			continue

		case gear.EnableReceive:
			r.xcvr.EnableReceive()

		case gear.RequestTimer100ms:
			r.timers.Arm(gear.TimerRepeat)

		case gear.RequestTimer200ms:
			r.timers.Arm(gear.TimerDAPC)

		case gear.ClearAllTimers:
			r.timers.Cancel(gear.TimerRepeat)
			r.timers.Cancel(gear.TimerDAPC)

		case gear.NoAction:
		}
		return
	}
}

func (r *Runner) notify(now time.Time, snap gear.Snapshot) {
	for _, o := range r.observers {
		o.Observe(now, snap)
	}
}
