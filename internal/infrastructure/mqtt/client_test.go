package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Tests that dial it live in integration_test.go and need a broker at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "daligear-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Forward", topics.Forward("kitchen"), "graylogic/dali/kitchen/forward"},
		{"Backward", topics.Backward("kitchen"), "graylogic/dali/kitchen/backward"},
		{"LampStatus", topics.LampStatus("kitchen"), "graylogic/dali/kitchen/lamp_status"},
		{"BusPower", topics.BusPower("kitchen"), "graylogic/dali/kitchen/bus_power"},
		{"Lamp", topics.Lamp("kitchen"), "graylogic/dali/kitchen/lamp"},
		{"State", topics.State("kitchen"), "graylogic/dali/kitchen/state"},
		{"Event", topics.Event("kitchen"), "graylogic/dali/kitchen/event"},
		{"Health", topics.Health("kitchen"), "graylogic/dali/kitchen/health"},
		{"Status", topics.Status("daligear-01"), "graylogic/dali/status/daligear-01"},
		{"AllForward", topics.AllForward(), "graylogic/dali/+/forward"},
		{"AllBackward", topics.AllBackward(), "graylogic/dali/+/backward"},
		{"AllTopics", topics.AllTopics(), "graylogic/dali/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "gear"
	cfg.Auth.Password = "secret"

	opts := clientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "daligear-test" {
		t.Errorf("ClientID = %q, want daligear-test", opts.ClientID)
	}
	if opts.Username != "gear" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect with a clean session")
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := clientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %s, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS config with minimum version")
	}
}

func TestSetWill(t *testing.T) {
	opts := clientOptions(testConfig())
	setWill(opts, "daligear-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Error("expected a retained will message")
	}
	if opts.WillTopic != "graylogic/dali/status/daligear-test" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var will map[string]string
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if will["status"] != "offline" || will["reason"] != "unexpected_disconnect" {
		t.Errorf("will payload = %v", will)
	}
}

func TestPresence(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		reason     string
		wantReason bool
	}{
		{"online", presenceOnline, "", false},
		{"shutdown", presenceOffline, reasonShutdown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			if err := json.Unmarshal(presence("g1", tt.status, tt.reason), &got); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if got["status"] != tt.status || got["client_id"] != "g1" || got["timestamp"] == "" {
				t.Errorf("payload = %v", got)
			}
			if _, ok := got["reason"]; ok != tt.wantReason {
				t.Errorf("reason present = %v, want %v", ok, tt.wantReason)
			}
		})
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{qos: 1}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "a/b", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSON_MarshalError(t *testing.T) {
	client := &Client{qos: 1}

	err := client.PublishJSON("a/b", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subs: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("a/b", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("a/b", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("a/b", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if client.Subscribed("a/b") {
		t.Error("failed subscription was tracked")
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (fakeMessage) Duplicate() bool   { return false }
func (fakeMessage) Qos() byte         { return 1 }
func (fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string   { return m.topic }
func (fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (fakeMessage) Ack()              {}

func TestDispatch(t *testing.T) {
	logger := &recordingLogger{}
	client := &Client{}
	client.SetLogger(logger)

	msg := fakeMessage{topic: "graylogic/dali/g1/forward", payload: []byte("FE80")}

	var got string
	client.dispatch(func(_ string, payload []byte) error {
		got = string(payload)
		return nil
	})(nil, msg)
	if got != "FE80" {
		t.Errorf("handler payload = %q, want FE80", got)
	}

	client.dispatch(func(string, []byte) error {
		return errors.New("bad frame")
	})(nil, msg)

	client.dispatch(func(string, []byte) error {
		panic("boom")
	})(nil, msg)

	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one for the handler error", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one for the recovered panic", logger.errors)
	}
}
