package dali

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

// Transceiver moves frames between the bus and the Runner.
//
// Transmit blocks until the backward frame has left the transport (or
// failed); the Runner then reports transmit completion to the core.
type Transceiver interface {
	// Start begins delivering received frames to sink. It must not block.
	Start(ctx context.Context, sink FrameSink) error

	// Transmit sends one backward frame.
	Transmit(ctx context.Context, b byte) error

	// StopReceive drops incoming forward frames until EnableReceive.
	StopReceive()

	// EnableReceive re-arms reception.
	EnableReceive()

	// IsConnected reports whether the transport link is up.
	IsConnected() bool

	// Close releases the transport.
	Close() error
}

// FrameSink receives bus events from a Transceiver. Implemented by Runner.
type FrameSink interface {
	Frame(f gear.Frame)
	BusPower(up bool)
}

// receiveGate implements StopReceive/EnableReceive for the transceivers.
// Reception starts enabled.
type receiveGate struct {
	stopped atomic.Bool
}

func (g *receiveGate) StopReceive()    { g.stopped.Store(true) }
func (g *receiveGate) EnableReceive()  { g.stopped.Store(false) }
func (g *receiveGate) receiving() bool { return !g.stopped.Load() }

// decodeForward parses a forward frame payload: either two raw bytes or a
// hex string accepted by gear.ParseFrameHex.
func decodeForward(payload []byte) (gear.Frame, error) {
	if len(payload) == gear.FrameSize {
		return gear.ParseFrame(payload)
	}
	return gear.ParseFrameHex(string(payload))
}

// encodeBackward renders a backward frame as two hex digits.
func encodeBackward(b byte) string {
	return fmt.Sprintf("%02X", b)
}

// parseBusPower decodes a bus power payload.
func parseBusPower(payload string) (up bool, err error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "up", "on", "1", "true":
		return true, nil
	case "down", "off", "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: bus power %q", ErrInvalidPayload, payload)
	}
}
