package mqtt

import "fmt"

// Subscribe routes messages on topic to handler. topic may use the + and #
// wildcards, e.g. Topics.AllBackward for a bus monitor.
//
// The subscription is remembered and replayed after every reconnect.
// Subscribing again to the same topic replaces the handler.
//
// Example:
//
//	err := client.Subscribe(mqtt.Topics{}.LampStatus("kitchen"), 1, output.HandleLampStatus)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.client.Subscribe(topic, qos, c.dispatch(handler)), publishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// Unsubscribe drops topic. It is forgotten locally even if the broker
// request fails, so it will not come back on reconnect. Messages already in
// flight may still reach the old handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := wait(c.client.Unsubscribe(topic), publishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsubscribeFailed, topic, err)
	}
	return nil
}

// Subscribed reports whether topic is currently subscribed (exact match).
func (c *Client) Subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[topic]
	return ok
}
