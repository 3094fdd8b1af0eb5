package dali

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/config"
)

// busLinePrefix introduces a bus power line from the adapter.
const busLinePrefix = "BUS "

// SerialTransceiver talks to a USB/serial DALI interface using a
// line-oriented hex protocol:
//
//	adapter -> gear:  "FE80"      forward frame
//	                  "BUS UP"    bus power restored
//	                  "BUS DOWN"  bus power lost
//	gear -> adapter:  "FF"        backward frame
//
// Lines end in "\n"; a trailing "\r" is ignored.
type SerialTransceiver struct {
	receiveGate

	port   io.ReadWriteCloser
	device string

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	connected atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup

	logger Logger
}

// OpenSerial opens the configured serial device at 8N1.
func OpenSerial(cfg config.SerialConfig) (*SerialTransceiver, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Device, err)
	}
	return newSerialTransceiver(port, cfg.Device), nil
}

func newSerialTransceiver(port io.ReadWriteCloser, device string) *SerialTransceiver {
	t := &SerialTransceiver{
		port:   port,
		device: device,
		done:   make(chan struct{}),
		logger: nopLogger{},
	}
	t.connected.Store(true)
	return t
}

// SetLogger sets the logger for the transceiver.
func (t *SerialTransceiver) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Start launches the read loop. Cancelling ctx closes the port.
func (t *SerialTransceiver) Start(ctx context.Context, sink FrameSink) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		t.readLoop(sink)
	}()
	go func() {
		defer t.wg.Done()
		select {
		case <-ctx.Done():
			t.closePort()
		case <-t.done:
		}
	}()

	t.logger.Info("serial transceiver started", "device", t.device)
	return nil
}

func (t *SerialTransceiver) readLoop(sink FrameSink) {
	scanner := bufio.NewScanner(t.port)
	for scanner.Scan() {
		t.handleLine(sink, scanner.Text())
	}

	t.connected.Store(false)
	if t.closed.Load() {
		return
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	t.logger.Error("serial read loop ended", "device", t.device, "error", err)
}

func (t *SerialTransceiver) handleLine(sink FrameSink, line string) {
	line = strings.ToUpper(strings.TrimSpace(line))
	if line == "" {
		return
	}

	if rest, ok := strings.CutPrefix(line, busLinePrefix); ok {
		up, err := parseBusPower(rest)
		if err != nil {
			t.logger.Warn("ignoring serial line", "device", t.device, "line", line, "error", err)
			return
		}
		sink.BusPower(up)
		return
	}

	if !t.receiving() {
		return
	}
	f, err := gear.ParseFrameHex(line)
	if err != nil {
		t.logger.Warn("ignoring serial line", "device", t.device, "line", line, "error", err)
		return
	}
	sink.Frame(f)
}

// Transmit writes a backward frame line.
func (t *SerialTransceiver) Transmit(ctx context.Context, b byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed.Load() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := io.WriteString(t.port, encodeBackward(b)+"\n"); err != nil {
		return fmt.Errorf("writing to %s: %w", t.device, err)
	}
	return nil
}

// IsConnected reports whether the read loop is still running.
func (t *SerialTransceiver) IsConnected() bool {
	return t.connected.Load() && !t.closed.Load()
}

// Close closes the port and waits for the read loop to exit.
func (t *SerialTransceiver) Close() error {
	err := t.closePort()
	t.wg.Wait()
	return err
}

func (t *SerialTransceiver) closePort() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		err = t.port.Close()
	})
	return err
}
