package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps outgoing messages at 1 MiB. Gear payloads are a few
// hundred bytes at most; anything larger is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload on topic and waits for the broker's acknowledgement
// at the requested QoS.
//
// Retain state topics (lamp, state, health) so late subscribers see the
// current value; never retain frames or events.
//
// Example:
//
//	err := client.Publish(mqtt.Topics{}.Backward("kitchen"), []byte("FF"), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %s: %d bytes exceeds %d", ErrPublishFailed, topic, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.client.Publish(topic, qos, retained, payload), publishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// PublishJSON encodes v and publishes it at the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s: encoding: %w", ErrPublishFailed, topic, err)
	}
	return c.Publish(topic, payload, c.qos, retained)
}

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	return nil
}
