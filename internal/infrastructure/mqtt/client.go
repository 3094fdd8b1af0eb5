package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client writes to.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one message. paho calls it on its own goroutine,
// so it must not block for long. A returned error is logged and otherwise
// ignored; the message is still acknowledged.
type MessageHandler func(topic string, payload []byte) error

// Client is the daemon's broker connection.
//
// paho reconnects on its own; Client remembers every subscription and
// replays them, then republishes the retained presence message, each time
// the link comes back. The gear's backward frames, lamp level, state, events
// and health all leave through Publish.
//
// Thread Safety: all methods may be called from any goroutine.
type Client struct {
	client   pahomqtt.Client
	clientID string
	qos      byte

	mu           sync.RWMutex
	connected    bool
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker described by cfg and waits for the first
// connection.
//
// The broker holds a retained "offline" will for cfg.Broker.ClientID, so bus
// tools notice a daemon that dies without calling Close.
//
// Parameters:
//   - cfg: the mqtt section of the daemon config
//
// Returns:
//   - *Client: connected and publishing "online" presence
//   - error: wraps ErrConnectionFailed on timeout or refusal
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		clientID: cfg.Broker.ClientID,
		qos:      byte(cfg.QoS),
		subs:     make(map[string]subscription),
	}

	opts := clientOptions(cfg)
	setWill(opts, c.clientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.linkUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.linkDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if l := c.log(); l != nil {
			l.Warn("mqtt reconnecting", "broker", cfg.Broker.Host, "client_id", c.clientID)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	if err := wait(c.client.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %s:%d: %w", ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, err)
	}

	// The OnConnect handler may still be in flight; mark the link up now so
	// callers can publish straight away.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return c, nil
}

// wait blocks on token for at most d.
func wait(token pahomqtt.Token, d time.Duration) error {
	if !token.WaitTimeout(d) {
		return fmt.Errorf("%w after %v", ErrTimeout, d)
	}
	return token.Error()
}

func (c *Client) linkUp() {
	c.mu.Lock()
	c.connected = true
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	fn := c.onConnect
	c.mu.Unlock()

	for topic, s := range subs {
		// Failures here surface through the next connection-lost callback.
		c.client.Subscribe(topic, s.qos, c.dispatch(s.handler))
	}
	c.client.Publish(Topics{}.Status(c.clientID), c.qos, true, presence(c.clientID, presenceOnline, ""))

	if fn != nil {
		fn()
	}
}

func (c *Client) linkDown(err error) {
	c.mu.Lock()
	c.connected = false
	fn := c.onDisconnect
	c.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// Close publishes "offline" presence, waits briefly for in-flight messages
// and disconnects. Close on a never-connected client is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(Topics{}.Status(c.clientID), c.qos, true,
			presence(c.clientID, presenceOffline, reasonShutdown))
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesceMillis)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck reports ErrNotConnected while the link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the link state as of the last paho callback.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect registers fn to run after every (re)connection, once the
// subscriptions have been restored.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers fn to run when the link drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets where handler errors and panics are reported.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// dispatch adapts a MessageHandler to paho. A panicking handler is logged
// and must not take down paho's router goroutine.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.log(); l != nil {
					l.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if l := c.log(); l != nil {
				l.Warn("mqtt message rejected", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
