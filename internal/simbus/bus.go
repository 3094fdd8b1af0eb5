package simbus

import (
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/paramstore"
)

// Answer is the merged backward traffic for one forward frame.
type Answer struct {
	// Count is how many gears answered.
	Count int

	// Value is the first answer. It is only meaningful without a collision.
	Value byte
}

// Present reports whether any gear answered. A collision counts.
func (a Answer) Present() bool { return a.Count > 0 }

// Collision reports whether several gears answered at once.
func (a Answer) Collision() bool { return a.Count > 1 }

// lamp is the simulated light output of one gear.
type lamp struct {
	mu    sync.Mutex
	level uint16
}

func (l *lamp) SetLightLevelPercent(hundredths uint16) {
	l.mu.Lock()
	l.level = hundredths
	l.mu.Unlock()
}

func (l *lamp) LampOn() bool { return true }

func (l *lamp) get() uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Device is one simulated control gear.
type Device struct {
	ID    string
	gear  *gear.Gear
	store *paramstore.Memory
	out   *lamp
	sched *manualScheduler
}

// Gear returns the device's control gear.
func (d *Device) Gear() *gear.Gear { return d.gear }

// Snapshot returns the device's observable state.
func (d *Device) Snapshot() gear.Snapshot { return d.gear.Snapshot() }

// Output returns the light output in hundredths of a percent.
func (d *Device) Output() uint16 { return d.out.get() }

// Bus connects simulated gears to one forward/backward channel.
//
// Thread Safety: All methods are safe for concurrent use; frames are
// delivered one at a time.
type Bus struct {
	mu      sync.Mutex
	devices []*Device
	frames  int
}

// NewBus creates n powered-on gears. Each gear draws random addresses from
// its own stream of seed, so a bus is reproducible for a given seed.
func NewBus(n int, seed uint64) (*Bus, error) {
	if n <= 0 {
		return nil, ErrNoGears
	}

	b := &Bus{}
	for i := range n {
		id := paramstore.DefaultIdentity()
		id.Serial = uint64(i + 1)

		store, err := paramstore.NewMemory(id)
		if err != nil {
			return nil, fmt.Errorf("creating store for gear %d: %w", i, err)
		}
		d := &Device{
			ID:    fmt.Sprintf("sim-%02d", i),
			store: store,
			out:   &lamp{},
			sched: newManualScheduler(),
		}
		g, err := gear.New(gear.Options{
			Store:     store,
			Random:    NewSeededRandom(seed, uint64(i)),
			Output:    d.out,
			Scheduler: d.sched,
		})
		if err != nil {
			return nil, fmt.Errorf("creating gear %d: %w", i, err)
		}
		d.gear = g
		g.PowerOn()
		b.devices = append(b.devices, d)
	}
	return b, nil
}

// Devices returns the gears on the bus.
func (b *Bus) Devices() []*Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Device(nil), b.devices...)
}

// Frames returns how many forward frames have been sent.
func (b *Bus) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Send delivers f to every gear and merges their answers.
func (b *Bus) Send(f gear.Frame) Answer {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames++
	var ans Answer
	for _, d := range b.devices {
		if v, ok := deliver(d.gear, f); ok {
			if ans.Count == 0 {
				ans.Value = v
			}
			ans.Count++
		}
	}
	return ans
}

// SendTwice sends f twice in a row, as repeat-required commands need.
func (b *Bus) SendTwice(f gear.Frame) Answer {
	b.Send(f)
	return b.Send(f)
}

// ExpireInitialise fires the commissioning timer on every gear that has it
// armed, as if 15 minutes had passed.
func (b *Bus) ExpireInitialise() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, d := range b.devices {
		if d.sched.take(gear.TimerInitialise) {
			d.gear.HandleTimeout(gear.TimerInitialise)
		}
	}
}

// deliver runs one frame through a gear. The backward frame, if any, is
// "sent" immediately.
func deliver(g *gear.Gear, f gear.Frame) (byte, bool) {
	res := g.HandleFrame(f)
	if res.Action != gear.TransmitResponse {
		return 0, false
	}
	g.HandleTransmitDone()
	return res.Response, true
}
