package gear

import (
	"testing"
	"time"
)

// mockStore implements ParameterStore for testing.
type mockStore struct {
	values   map[ParamID]byte
	defaults map[ParamID]byte
	memory   map[[2]byte]byte
	puts     []ParamID
	resets   []byte
}

func testDefaults() map[ParamID]byte {
	d := map[ParamID]byte{
		ParamShortAddress:       ShortUnassigned,
		ParamMinLevel:           1,
		ParamMaxLevel:           MaxLevel,
		ParamPowerOnLevel:       MaxLevel,
		ParamSystemFailureLevel: MaxLevel,
		ParamFadeTime:           0,
		ParamFadeRate:           7,
		ParamExtendedFadeTime:   0,
		ParamFastFadeTime:       0,
		ParamPhysicalMinLevel:   1,
		ParamRandomAddressH:     0xFF,
		ParamRandomAddressM:     0xFF,
		ParamRandomAddressL:     0xFF,
		ParamLastActiveLevel:    MaxLevel,
		ParamCurrentProtector:   1,
		ParamDeviceType:         DeviceTypeLED,
		ParamVersionNumber:      0x08,
		ParamExtendedVersion:    0x02,
		ParamGearType:           0x01,
		ParamMinFastFadeTime:    1,
		ParamLightSourceType:    6,
	}
	for i := 0; i < SceneCount; i++ {
		d[SceneParam(i)] = Mask
	}
	return d
}

func newMockStore() *mockStore {
	m := &mockStore{
		values:   make(map[ParamID]byte),
		defaults: testDefaults(),
		memory:   make(map[[2]byte]byte),
	}
	for p, v := range m.defaults {
		m.values[p] = v
	}
	// bank 0: last accessible location 0x02, then two identity bytes
	m.memory[[2]byte{0, 0}] = 0x02
	m.memory[[2]byte{0, 1}] = 0xAA
	m.memory[[2]byte{0, 2}] = 0xBB
	// bank 1: three writable locations
	m.memory[[2]byte{1, 0}] = 0x04
	return m
}

func (m *mockStore) Get(id ParamID) byte     { return m.values[id] }
func (m *mockStore) Default(id ParamID) byte { return m.defaults[id] }

func (m *mockStore) Put(id ParamID, v byte) {
	m.values[id] = v
	m.puts = append(m.puts, id)
}

func (m *mockStore) ReadMemory(bank, addr byte) (byte, bool) {
	v, ok := m.memory[[2]byte{bank, addr}]
	return v, ok
}

func (m *mockStore) WriteMemory(bank, addr, v byte) bool {
	if bank != 1 || addr == 0 || addr > 4 {
		return false
	}
	m.memory[[2]byte{bank, addr}] = v
	return true
}

func (m *mockStore) ResetMemory(bank byte) {
	if bank == 1 {
		for addr := byte(1); addr <= 4; addr++ {
			delete(m.memory, [2]byte{1, addr})
		}
		m.resets = append(m.resets, bank)
	}
}

// mockRandom returns bytes from a fixed sequence, cycling.
type mockRandom struct {
	seq []byte
	pos int
}

func (m *mockRandom) RandomByte() byte {
	if len(m.seq) == 0 {
		return 0
	}
	b := m.seq[m.pos%len(m.seq)]
	m.pos++
	return b
}

// mockScheduler records Arm/Cancel calls.
type mockScheduler struct {
	armed     []TimerID
	cancelled []TimerID
}

func (m *mockScheduler) Arm(id TimerID)    { m.armed = append(m.armed, id) }
func (m *mockScheduler) Cancel(id TimerID) { m.cancelled = append(m.cancelled, id) }

// mockTransceiver counts StopReceive calls.
type mockTransceiver struct {
	stops int
}

func (m *mockTransceiver) StopReceive() { m.stops++ }

// mockOutput records the last output and reports a configurable lamp state.
type mockOutput struct {
	last    uint16
	writes  int
	lampOff bool
}

func (m *mockOutput) SetLightLevelPercent(h uint16) {
	m.last = h
	m.writes++
}

func (m *mockOutput) LampOn() bool { return !m.lampOff }

// testRig bundles a powered gear with its mocks.
type testRig struct {
	t     *testing.T
	g     *Gear
	store *mockStore
	rng   *mockRandom
	sched *mockScheduler
	xcvr  *mockTransceiver
	out   *mockOutput
}

func newTestRig(t *testing.T, params map[ParamID]byte) *testRig {
	t.Helper()
	r := &testRig{
		t:     t,
		store: newMockStore(),
		rng:   &mockRandom{seq: []byte{0x12, 0x34, 0x56}},
		sched: &mockScheduler{},
		xcvr:  &mockTransceiver{},
		out:   &mockOutput{},
	}
	for p, v := range params {
		r.store.values[p] = v
	}
	g, err := New(Options{
		Store:       r.store,
		Random:      r.rng,
		Output:      r.out,
		Scheduler:   r.sched,
		Transceiver: r.xcvr,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r.g = g
	if res := g.PowerOn(); res.Action != EnableReceive {
		t.Fatalf("PowerOn() action = %v, want %v", res.Action, EnableReceive)
	}
	return r
}

func (r *testRig) session() *Session {
	return &r.g.session
}

// send delivers a frame and completes any transmission it triggers.
func (r *testRig) send(f Frame) Result {
	r.t.Helper()
	res := r.g.HandleFrame(f)
	if res.Action == TransmitResponse {
		if done := r.g.HandleTransmitDone(); done.Action != EnableReceive {
			r.t.Fatalf("HandleTransmitDone() action = %v, want %v", done.Action, EnableReceive)
		}
	}
	return res
}

// sendTwice delivers a repeat-required frame twice within the window.
func (r *testRig) sendTwice(f Frame) Result {
	r.t.Helper()
	if res := r.send(f); res.Action != RequestTimer100ms {
		r.t.Fatalf("first %v action = %v, want %v", f, res.Action, RequestTimer100ms)
	}
	return r.send(f)
}

// query sends a broadcast query and returns its answer.
func (r *testRig) query(op byte) (byte, bool) {
	r.t.Helper()
	res := r.send(NewCommandFrame(ModeBroadcast, 0, op))
	return res.Response, res.Action == TransmitResponse
}

// queryExtended sends ENABLE DEVICE TYPE 6 followed by an extended query.
func (r *testRig) queryExtended(op byte) (byte, bool) {
	r.t.Helper()
	r.send(NewSpecialFrame(SpecialEnableDeviceType, DeviceTypeLED))
	return r.query(op)
}

func (r *testRig) dtr0(v byte) {
	r.t.Helper()
	r.send(NewSpecialFrame(SpecialDTR0, v))
}

func (r *testRig) broadcast(op byte) Frame {
	return NewCommandFrame(ModeBroadcast, 0, op)
}

// tickFor advances time in steps of step for total.
func (r *testRig) tickFor(total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		r.g.Tick(step)
	}
}
