package dali

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client used by MQTTTransceiver.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MQTTTransceiver exchanges frames with a bus adapter over MQTT.
//
// Topics (see mqtt.Topics):
//   - graylogic/dali/{gear_id}/forward    in, 4 hex digits or 2 raw bytes
//   - graylogic/dali/{gear_id}/bus_power  in, "up" / "down"
//   - graylogic/dali/{gear_id}/backward   out, 2 hex digits
//
// The MQTT client is shared and owned by the caller; Close only removes
// this transceiver's subscriptions.
type MQTTTransceiver struct {
	receiveGate

	client MQTTClient
	gearID string
	topics mqtt.Topics

	mu     sync.Mutex
	subs   []string
	closed bool

	logger Logger
}

// NewMQTTTransceiver creates a transceiver for one gear.
func NewMQTTTransceiver(client MQTTClient, gearID string) *MQTTTransceiver {
	return &MQTTTransceiver{
		client: client,
		gearID: gearID,
		logger: nopLogger{},
	}
}

// SetLogger sets the logger for the transceiver.
func (t *MQTTTransceiver) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Start subscribes to the forward and bus power topics.
func (t *MQTTTransceiver) Start(_ context.Context, sink FrameSink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	handlers := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{t.topics.Forward(t.gearID), t.forwardHandler(sink)},
		{t.topics.BusPower(t.gearID), t.busPowerHandler(sink)},
	}
	for _, h := range handlers {
		if err := t.client.Subscribe(h.topic, 1, h.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", h.topic, err)
		}
		t.subs = append(t.subs, h.topic)
	}

	t.logger.Info("mqtt transceiver started", "gear_id", t.gearID)
	return nil
}

func (t *MQTTTransceiver) forwardHandler(sink FrameSink) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		if !t.receiving() {
			return nil
		}
		f, err := decodeForward(payload)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		sink.Frame(f)
		return nil
	}
}

func (t *MQTTTransceiver) busPowerHandler(sink FrameSink) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		up, err := parseBusPower(string(payload))
		if err != nil {
			return err
		}
		sink.BusPower(up)
		return nil
	}
}

// Transmit publishes a backward frame.
func (t *MQTTTransceiver) Transmit(ctx context.Context, b byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	return t.client.Publish(t.topics.Backward(t.gearID), []byte(encodeBackward(b)), 1, false)
}

// IsConnected reports whether the MQTT client is connected.
func (t *MQTTTransceiver) IsConnected() bool {
	return t.client.IsConnected()
}

// Close unsubscribes from the gear's topics.
func (t *MQTTTransceiver) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if t.client.IsConnected() {
		for _, topic := range t.subs {
			if err := t.client.Unsubscribe(topic); err != nil {
				errs = append(errs, err)
			}
		}
	}
	t.subs = nil
	return errors.Join(errs...)
}
