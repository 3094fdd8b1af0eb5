package simbus

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

// Initialise selectors.
const (
	initialiseAll         byte = 0x00
	initialiseUnaddressed byte = 0xFF
)

// Sender is a bus a Master can drive. Implemented by *Bus.
type Sender interface {
	Send(f gear.Frame) Answer
	SendTwice(f gear.Frame) Answer
}

// Assignment is one short address handed out during commissioning.
type Assignment struct {
	ShortAddress  byte
	RandomAddress uint32

	// Compares is how many COMPARE frames it took to isolate the gear.
	Compares int

	// Conflict is set when several gears shared the random address and
	// therefore received the same short address.
	Conflict bool
}

// Report summarises a commissioning run.
type Report struct {
	Assignments []Assignment
	Frames      int
}

// Conflicts returns how many assignments went to more than one gear.
func (r Report) Conflicts() int {
	n := 0
	for _, a := range r.Assignments {
		if a.Conflict {
			n++
		}
	}
	return n
}

// CommissionOptions controls a commissioning run.
type CommissionOptions struct {
	// OnlyUnaddressed restricts the run to gears without a short address.
	OnlyUnaddressed bool

	// FirstAddress is the first short address handed out.
	FirstAddress byte
}

// Master is a commissioning bus master.
type Master struct {
	bus    Sender
	frames int

	// search is the search address last sent, valid when searchKnown.
	search      uint32
	searchKnown bool

	logger Logger
}

// NewMaster creates a master on bus.
func NewMaster(bus Sender) *Master {
	return &Master{bus: bus, logger: nopLogger{}}
}

// SetLogger sets the logger for the master.
func (m *Master) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

func (m *Master) send(f gear.Frame) Answer {
	m.frames++
	return m.bus.Send(f)
}

func (m *Master) sendTwice(f gear.Frame) Answer {
	m.frames += 2
	return m.bus.SendTwice(f)
}

// Commission assigns short addresses to every gear on the bus by random
// address search.
//
// Returns:
//   - Report: the assignments made, also on error
//   - error: ErrAddressSpaceExhausted, ErrVerifyFailed or ctx.Err()
func (m *Master) Commission(ctx context.Context, opts CommissionOptions) (Report, error) {
	m.frames = 0
	m.searchKnown = false

	selector := initialiseAll
	if opts.OnlyUnaddressed {
		selector = initialiseUnaddressed
	}
	m.sendTwice(gear.NewSpecialFrame(gear.SpecialInitialise, selector))
	m.sendTwice(gear.NewSpecialFrame(gear.SpecialRandomise, 0x00))

	report, err := m.assign(ctx, opts.FirstAddress)

	m.send(gear.NewSpecialFrame(gear.SpecialTerminate, 0x00))
	report.Frames = m.frames

	m.logger.Info("commissioning finished",
		"gears", len(report.Assignments),
		"conflicts", report.Conflicts(),
		"frames", report.Frames)
	return report, err
}

func (m *Master) assign(ctx context.Context, next byte) (Report, error) {
	var report Report
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		random, compares, found := m.findLowest()
		if !found {
			return report, nil
		}
		if next > gear.MaxShortAddress {
			return report, fmt.Errorf("%w: gear %06X unassigned", ErrAddressSpaceExhausted, random)
		}

		m.send(gear.NewSpecialFrame(gear.SpecialProgramShortAddress, gear.EncodeShortAddress(next)))
		verify := m.send(gear.NewSpecialFrame(gear.SpecialVerifyShortAddress, gear.EncodeShortAddress(next)))
		if !verify.Present() {
			return report, fmt.Errorf("%w: short address %d, random %06X", ErrVerifyFailed, next, random)
		}
		m.send(gear.NewSpecialFrame(gear.SpecialWithdraw, 0x00))

		a := Assignment{
			ShortAddress:  next,
			RandomAddress: random,
			Compares:      compares,
			Conflict:      verify.Collision(),
		}
		if a.Conflict {
			m.logger.Warn("random address shared by several gears", "random", fmt.Sprintf("%06X", random), "short_address", next)
		}
		m.logger.Debug("short address assigned",
			"short_address", next,
			"random", fmt.Sprintf("%06X", random),
			"compares", compares)

		report.Assignments = append(report.Assignments, a)
		next++
	}
}

// findLowest binary-searches the lowest random address among gears that are
// still in the search.
func (m *Master) findLowest() (random uint32, compares int, found bool) {
	m.setSearch(gear.SearchAddressReset)
	compares++
	if !m.compare() {
		return 0, compares, false
	}

	low, high := uint32(0), gear.SearchAddressReset
	for low < high {
		mid := low + (high-low)/2
		m.setSearch(mid)
		compares++
		if m.compare() {
			high = mid
		} else {
			low = mid + 1
		}
	}
	m.setSearch(low)
	return low, compares, true
}

func (m *Master) compare() bool {
	return m.send(gear.NewSpecialFrame(gear.SpecialCompare, 0x00)).Present()
}

// setSearch sends only the search address bytes that changed.
func (m *Master) setSearch(addr uint32) {
	parts := []struct {
		special byte
		shift   uint
	}{
		{gear.SpecialSearchAddrH, 16},
		{gear.SpecialSearchAddrM, 8},
		{gear.SpecialSearchAddrL, 0},
	}
	for _, p := range parts {
		b := byte(addr >> p.shift)
		if m.searchKnown && byte(m.search>>p.shift) == b {
			continue
		}
		m.send(gear.NewSpecialFrame(p.special, b))
	}
	m.search = addr
	m.searchKnown = true
}
