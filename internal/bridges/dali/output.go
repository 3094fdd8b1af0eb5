package dali

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/mqtt"
)

// defaultStateInterval rate-limits retained state messages.
const defaultStateInterval = time.Second

// Publisher is the MQTT subset used for publishing.
// Implemented by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MetricsWriter records gear telemetry. Implemented by *influxdb.Client.
type MetricsWriter interface {
	WriteLevel(gearID string, s influxdb.LevelSample, ts time.Time)
	WriteStatus(gearID string, s influxdb.StatusSample, ts time.Time)
	WriteFrameCounters(gearID string, fc influxdb.FrameCounters, ts time.Time)
}

// GearState is the retained state message.
// Topic: graylogic/dali/{gear_id}/state
type GearState struct {
	GearID         string         `json:"gear_id"`
	Timestamp      time.Time      `json:"timestamp"`
	State          string         `json:"state"`
	Enabled        bool           `json:"enabled"`
	ActualLevel    int            `json:"actual_level"`
	RequestedLevel int            `json:"requested_level"`
	OutputPercent  float64        `json:"output_percent"`
	Fading         bool           `json:"fading"`
	Status         int            `json:"status"`
	ShortAddress   *int           `json:"short_address"`
	Groups         []int          `json:"groups"`
	RandomAddress  string         `json:"random_address"`
	LampFailure    bool           `json:"lamp_failure"`
	BusDown        bool           `json:"bus_down"`
	Identifying    bool           `json:"identifying"`
	Params         map[string]int `json:"params"`
}

// NewGearState converts a snapshot into the state message.
func NewGearState(gearID string, snap gear.Snapshot, ts time.Time) GearState {
	st := GearState{
		GearID:         gearID,
		Timestamp:      ts.UTC(),
		State:          snap.State,
		Enabled:        snap.Enabled,
		ActualLevel:    int(snap.ActualLevel),
		RequestedLevel: int(snap.RequestedLevel),
		OutputPercent:  float64(snap.OutputHundredths) / 100,
		Fading:         snap.FadeRunning,
		Status:         int(snap.Status),
		Groups:         groupList(snap.Groups),
		RandomAddress:  strconv.FormatUint(uint64(snap.RandomAddress), 16),
		LampFailure:    snap.LampFailure,
		BusDown:        snap.BusDown,
		Identifying:    snap.Identifying,
		Params:         make(map[string]int, len(snap.Params)),
	}
	if snap.ShortAddress <= gear.MaxShortAddress {
		sa := int(snap.ShortAddress)
		st.ShortAddress = &sa
	}
	for id, v := range snap.Params {
		st.Params[gear.ParamID(id).String()] = int(v)
	}
	return st
}

func groupList(mask uint16) []int {
	groups := []int{}
	for g := 0; g < gear.GroupCount; g++ {
		if mask&(1<<g) != 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// StateOutput is the gear's light output. It implements gear.Output and
// Observer.
//
// The output level is published retained on the lamp topic whenever it
// changes. The full state message and telemetry points are published at
// most once per interval, and only when something other than the
// timestamp has changed.
//
// Thread Safety: All methods are safe for concurrent use.
type StateOutput struct {
	gearID    string
	publisher Publisher
	metrics   MetricsWriter
	interval  time.Duration
	topics    mqtt.Topics

	lampOn atomic.Bool

	mu            sync.Mutex
	output        uint16
	outputSet     bool
	lastLamp      uint16
	lampPublished bool
	lastState     []byte
	lastPublish   time.Time

	logger Logger
}

// StateOutputConfig configures a StateOutput.
type StateOutputConfig struct {
	GearID string

	// Publisher receives lamp and state messages (optional).
	Publisher Publisher

	// Metrics receives telemetry points (optional).
	Metrics MetricsWriter

	// Interval rate-limits state messages. Default: 1 second.
	Interval time.Duration
}

// NewStateOutput creates a StateOutput. The lamp is assumed to be working
// until SetLampOn(false).
func NewStateOutput(cfg StateOutputConfig) *StateOutput {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultStateInterval
	}
	o := &StateOutput{
		gearID:    cfg.GearID,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		interval:  interval,
		logger:    nopLogger{},
	}
	o.lampOn.Store(true)
	return o
}

// SetLogger sets the logger for the output.
func (o *StateOutput) SetLogger(logger Logger) {
	if logger != nil {
		o.logger = logger
	}
}

// SetLightLevelPercent implements gear.Output.
func (o *StateOutput) SetLightLevelPercent(hundredths uint16) {
	o.mu.Lock()
	o.output = hundredths
	o.outputSet = true
	o.mu.Unlock()
}

// LampOn implements gear.Output.
func (o *StateOutput) LampOn() bool {
	return o.lampOn.Load()
}

// SetLampOn reports whether the light source is actually emitting light.
// False with a non-zero output level raises lamp failure in the core.
func (o *StateOutput) SetLampOn(on bool) {
	if o.lampOn.Swap(on) != on {
		o.logger.Info("lamp status changed", "gear_id", o.gearID, "lamp_on", on)
	}
}

// HandleLampStatus is an MQTT handler for the lamp status topic.
func (o *StateOutput) HandleLampStatus(_ string, payload []byte) error {
	on, err := parseBusPower(string(payload))
	if err != nil {
		return err
	}
	o.SetLampOn(on)
	return nil
}

// Level returns the last output level set by the core.
func (o *StateOutput) Level() (hundredths uint16, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.output, o.outputSet
}

// Observe implements Observer.
func (o *StateOutput) Observe(now time.Time, snap gear.Snapshot) {
	o.publishLamp()

	o.mu.Lock()
	due := now.Sub(o.lastPublish) >= o.interval
	o.mu.Unlock()
	if !due {
		return
	}

	st := NewGearState(o.gearID, snap, now)
	st.Timestamp = time.Time{}
	digest, err := json.Marshal(st)
	if err != nil {
		o.logger.Error("encoding gear state", "gear_id", o.gearID, "error", err)
		return
	}

	o.mu.Lock()
	changed := string(digest) != string(o.lastState)
	o.lastPublish = now
	o.mu.Unlock()

	if !changed {
		return
	}
	st.Timestamp = now.UTC()
	o.writeMetrics(snap, now)
	if !o.publishState(st) {
		return // Retried next interval
	}

	o.mu.Lock()
	o.lastState = digest
	o.mu.Unlock()
}

func (o *StateOutput) publishLamp() {
	o.mu.Lock()
	level, set := o.output, o.outputSet
	publish := set && (!o.lampPublished || level != o.lastLamp)
	o.mu.Unlock()

	if !publish || o.publisher == nil || !o.publisher.IsConnected() {
		return
	}
	payload := []byte(strconv.Itoa(int(level)))
	if err := o.publisher.Publish(o.topics.Lamp(o.gearID), payload, 1, true); err != nil {
		o.logger.Warn("publishing lamp level", "gear_id", o.gearID, "error", err)
		return
	}

	o.mu.Lock()
	o.lastLamp = level
	o.lampPublished = true
	o.mu.Unlock()
}

// publishState reports whether the state no longer needs publishing.
func (o *StateOutput) publishState(st GearState) bool {
	if o.publisher == nil {
		return true
	}
	if !o.publisher.IsConnected() {
		return false
	}
	payload, err := json.Marshal(st)
	if err != nil {
		o.logger.Error("encoding gear state", "gear_id", o.gearID, "error", err)
		return true
	}
	if err := o.publisher.Publish(o.topics.State(o.gearID), payload, 1, true); err != nil {
		o.logger.Warn("publishing gear state", "gear_id", o.gearID, "error", err)
		return false
	}
	return true
}

func (o *StateOutput) writeMetrics(snap gear.Snapshot, now time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.WriteLevel(o.gearID, influxdb.LevelSample{
		ActualLevel:      snap.ActualLevel,
		RequestedLevel:   snap.RequestedLevel,
		OutputHundredths: snap.OutputHundredths,
		Fading:           snap.FadeRunning,
	}, now)
	o.metrics.WriteStatus(o.gearID, influxdb.StatusSample{
		Status:      snap.Status,
		LampFailure: snap.LampFailure,
		BusDown:     snap.BusDown,
		LimitError:  snap.LimitError,
	}, now)
	o.metrics.WriteFrameCounters(o.gearID, frameCounters(snap.Stats), now)
}

func frameCounters(s gear.Stats) influxdb.FrameCounters {
	return influxdb.FrameCounters{
		Received:        s.FramesReceived,
		Executed:        s.FramesExecuted,
		Ignored:         s.FramesIgnored,
		RepeatsAccepted: s.RepeatsAccepted,
		RepeatsDropped:  s.RepeatsDropped,
		Responses:       s.Responses,
	}
}
