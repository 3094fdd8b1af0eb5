package dali

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/config"
)

// natsFlushTimeout bounds how long Transmit waits for the server to
// acknowledge a backward frame.
const natsFlushTimeout = 2 * time.Second

// NATSConn is the subset of *nats.Conn used by NATSTransceiver.
type NATSConn interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	IsConnected() bool
	Close()
}

// NATSTransceiver exchanges frames over NATS.
//
// Subjects:
//   - {prefix}.{gear_id}.forward    in, 2 raw bytes or 4 hex digits
//   - {prefix}.{gear_id}.bus_power  in, "up" / "down"
//   - {prefix}.{gear_id}.backward   out, 1 raw byte
type NATSTransceiver struct {
	receiveGate

	nc     NATSConn
	prefix string
	gearID string

	// ownsConn is set when the connection was dialled by ConnectNATS.
	ownsConn bool

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool

	logger Logger
}

// ConnectNATS dials the configured server and returns a transceiver that
// owns the connection.
func ConnectNATS(cfg config.NATSConfig, gearID string) (*NATSTransceiver, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("daligear-"+gearID),
		nats.MaxReconnects(cfg.MaxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", cfg.URL, err)
	}
	t := NewNATSTransceiver(nc, cfg.SubjectPrefix, gearID)
	t.ownsConn = true
	return t, nil
}

// NewNATSTransceiver creates a transceiver on an existing connection.
func NewNATSTransceiver(nc NATSConn, prefix, gearID string) *NATSTransceiver {
	return &NATSTransceiver{
		nc:     nc,
		prefix: prefix,
		gearID: gearID,
		logger: nopLogger{},
	}
}

// SetLogger sets the logger for the transceiver.
func (t *NATSTransceiver) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Subject returns the subject of the given kind for this gear.
func (t *NATSTransceiver) Subject(kind string) string {
	return fmt.Sprintf("%s.%s.%s", t.prefix, t.gearID, kind)
}

// Start subscribes to the forward and bus power subjects.
func (t *NATSTransceiver) Start(_ context.Context, sink FrameSink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	fwd, err := t.nc.Subscribe(t.Subject("forward"), func(msg *nats.Msg) {
		if !t.receiving() {
			return
		}
		f, err := decodeForward(msg.Data)
		if err != nil {
			t.logger.Warn("ignoring forward frame", "subject", msg.Subject, "error", err)
			return
		}
		sink.Frame(f)
	})
	if err != nil {
		return fmt.Errorf("subscribe forward: %w", err)
	}
	t.subs = append(t.subs, fwd)

	pwr, err := t.nc.Subscribe(t.Subject("bus_power"), func(msg *nats.Msg) {
		up, err := parseBusPower(string(msg.Data))
		if err != nil {
			t.logger.Warn("ignoring bus power message", "subject", msg.Subject, "error", err)
			return
		}
		sink.BusPower(up)
	})
	if err != nil {
		return fmt.Errorf("subscribe bus power: %w", err)
	}
	t.subs = append(t.subs, pwr)

	t.logger.Info("nats transceiver started", "gear_id", t.gearID, "subscriptions", len(t.subs))
	return nil
}

// Transmit publishes a backward frame and flushes it to the server.
func (t *NATSTransceiver) Transmit(ctx context.Context, b byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	if err := t.nc.Publish(t.Subject("backward"), []byte{b}); err != nil {
		return fmt.Errorf("publish backward: %w", err)
	}
	return t.nc.FlushTimeout(natsFlushTimeout)
}

// IsConnected reports whether the NATS connection is up.
func (t *NATSTransceiver) IsConnected() bool {
	return t.nc.IsConnected()
}

// Close unsubscribes and, if the transceiver dialled it, closes the
// connection.
func (t *NATSTransceiver) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for _, sub := range t.subs {
		if sub == nil {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	t.subs = nil

	if t.ownsConn {
		t.nc.Close()
	}
	return errors.Join(errs...)
}
