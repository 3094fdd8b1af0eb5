package dali

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/mqtt"
)

// defaultHealthInterval is used when HealthReporterConfig.Interval is zero.
const defaultHealthInterval = 30 * time.Second

// HealthStatus represents the operational status of a gear.
type HealthStatus string

const (
	// HealthHealthy indicates the gear is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the gear is running with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy indicates the gear cannot reach the bus.
	HealthUnhealthy HealthStatus = "unhealthy"

	// HealthStarting indicates the daemon is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the daemon is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained health report of one gear.
// Topic: graylogic/dali/{gear_id}/health
type HealthMessage struct {
	GearID    string       `json:"gear_id"`
	Timestamp time.Time    `json:"timestamp"`
	Status    HealthStatus `json:"status"`
	Version   string       `json:"version"`

	// UptimeSeconds is how long the daemon has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// TransportConnected reports whether frames can reach the bus.
	TransportConnected bool `json:"transport_connected"`

	// ShortAddress is nil while the gear is unaddressed.
	ShortAddress *int `json:"short_address"`

	StatusByte int           `json:"status_byte"`
	Statistics *GearCounters `json:"statistics,omitempty"`

	// Reason explains a degraded or unhealthy status.
	Reason string `json:"reason,omitempty"`
}

// GearCounters are the frame counters reported in health messages.
type GearCounters struct {
	FramesReceived  uint64 `json:"frames_received"`
	FramesExecuted  uint64 `json:"frames_executed"`
	FramesIgnored   uint64 `json:"frames_ignored"`
	RepeatsAccepted uint64 `json:"repeats_accepted"`
	RepeatsDropped  uint64 `json:"repeats_dropped"`
	Responses       uint64 `json:"responses"`
}

// SnapshotSource provides the gear state. Implemented by *gear.Gear.
type SnapshotSource interface {
	Snapshot() gear.Snapshot
}

// ConnectionChecker reports link state. Implemented by every Transceiver.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthReporter publishes periodic health messages for one gear.
type HealthReporter struct {
	gearID    string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher Publisher
	source    SnapshotSource
	transport ConnectionChecker
	topics    mqtt.Topics

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	GearID  string
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher Publisher

	// Source provides the gear snapshot.
	Source SnapshotSource

	// Transport is checked for bus connectivity.
	Transport ConnectionChecker
}

// NewHealthReporter creates a new health reporter.
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		gearID:    cfg.GearID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		transport: cfg.Transport,
		done:      make(chan struct{}),
	}
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "daemon starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the gear's health. The first failing check wins.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.transport == nil || !h.transport.IsConnected() {
		return HealthUnhealthy, "transport disconnected"
	}
	if h.source == nil {
		return HealthHealthy, ""
	}

	snap := h.source.Snapshot()
	switch {
	case !snap.Enabled:
		return HealthDegraded, "gear disabled"
	case snap.BusDown:
		return HealthDegraded, "bus power down"
	case snap.LampFailure:
		return HealthDegraded, "lamp failure"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		GearID:        h.gearID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.transport != nil {
		msg.TransportConnected = h.transport.IsConnected()
	}
	if h.source != nil {
		snap := h.source.Snapshot()
		if snap.ShortAddress <= gear.MaxShortAddress {
			sa := int(snap.ShortAddress)
			msg.ShortAddress = &sa
		}
		msg.StatusByte = int(snap.Status)
		msg.Statistics = &GearCounters{
			FramesReceived:  snap.Stats.FramesReceived,
			FramesExecuted:  snap.Stats.FramesExecuted,
			FramesIgnored:   snap.Stats.FramesIgnored,
			RepeatsAccepted: snap.Stats.RepeatsAccepted,
			RepeatsDropped:  snap.Stats.RepeatsDropped,
			Responses:       snap.Stats.Responses,
		}
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.buildMessage(status, reason))
	if err != nil {
		return err
	}

	// QoS 1, retained
	return h.publisher.Publish(h.topics.Health(h.gearID), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "gear_id", h.gearID, "error", err)
	}
}
