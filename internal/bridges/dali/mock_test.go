package dali

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dali/internal/paramstore"
)

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// mockPublisher implements Publisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	err       error
	messages  []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newMockPublisher(connected bool) *mockPublisher {
	return &mockPublisher{connected: connected}
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, publishedMessage{
		topic:    topic,
		payload:  payload,
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]publishedMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

func (m *mockPublisher) onTopic(topic string) []publishedMessage {
	var out []publishedMessage
	for _, msg := range m.getMessages() {
		if msg.topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// mockTransceiver implements Transceiver for testing.
type mockTransceiver struct {
	receiveGate

	mu          sync.Mutex
	sink        FrameSink
	started     chan struct{}
	sent        []byte
	transmitErr error
	connected   bool
	closed      bool
	enables     int
}

func newMockTransceiver() *mockTransceiver {
	return &mockTransceiver{started: make(chan struct{}), connected: true}
}

func (m *mockTransceiver) Start(_ context.Context, sink FrameSink) error {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
	close(m.started)
	return nil
}

func (m *mockTransceiver) Transmit(_ context.Context, b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, b)
	return m.transmitErr
}

func (m *mockTransceiver) EnableReceive() {
	m.mu.Lock()
	m.enables++
	m.mu.Unlock()
	m.receiveGate.EnableReceive()
}

func (m *mockTransceiver) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransceiver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransceiver) getSent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.sent...)
}

// recordingSink implements FrameSink for testing.
type recordingSink struct {
	mu     sync.Mutex
	frames []gear.Frame
	power  []bool
}

func (s *recordingSink) Frame(f gear.Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func (s *recordingSink) BusPower(up bool) {
	s.mu.Lock()
	s.power = append(s.power, up)
	s.mu.Unlock()
}

func (s *recordingSink) getFrames() []gear.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gear.Frame(nil), s.frames...)
}

func (s *recordingSink) getPower() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.power...)
}

// fixedRandom implements gear.RandomSource.
type fixedRandom byte

func (r fixedRandom) RandomByte() byte { return byte(r) }

// recordingObserver implements Observer.
type recordingObserver struct {
	mu    sync.Mutex
	snaps []gear.Snapshot
}

func (o *recordingObserver) Observe(_ time.Time, snap gear.Snapshot) {
	o.mu.Lock()
	o.snaps = append(o.snaps, snap)
	o.mu.Unlock()
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.snaps)
}

// mockMetrics implements MetricsWriter.
type mockMetrics struct {
	mu     sync.Mutex
	levels []uint16
	status int
	frames int
}

func (m *mockMetrics) WriteLevel(_ string, s influxdb.LevelSample, _ time.Time) {
	m.mu.Lock()
	m.levels = append(m.levels, s.OutputHundredths)
	m.mu.Unlock()
}

func (m *mockMetrics) WriteStatus(_ string, _ influxdb.StatusSample, _ time.Time) {
	m.mu.Lock()
	m.status++
	m.mu.Unlock()
}

func (m *mockMetrics) WriteFrameCounters(_ string, _ influxdb.FrameCounters, _ time.Time) {
	m.mu.Lock()
	m.frames++
	m.mu.Unlock()
}

var errTransmit = errors.New("transmit failed")

// newTestRunner builds a runner over an in-memory store and a mock
// transceiver, and starts it. The runner stops with the test.
func newTestRunner(t *testing.T, observers ...Observer) (*Runner, *mockTransceiver, *StateOutput) {
	t.Helper()

	store, err := paramstore.NewMemory(paramstore.DefaultIdentity())
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	xcvr := newMockTransceiver()
	out := NewStateOutput(StateOutputConfig{GearID: "test-gear"})

	r, err := NewRunner(RunnerConfig{
		GearID:       "test-gear",
		Store:        store,
		Random:       fixedRandom(0x42),
		Output:       out,
		Transceiver:  xcvr,
		TickInterval: time.Millisecond,
		Observers:    observers,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})

	select {
	case <-xcvr.started:
	case <-time.After(time.Second):
		t.Fatal("transceiver not started")
	}
	return r, xcvr, out
}
