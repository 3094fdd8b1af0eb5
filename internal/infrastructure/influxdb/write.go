package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the gear daemon.
const (
	MeasurementLevel  = "dali_level"
	MeasurementStatus = "dali_status"
	MeasurementFrames = "dali_frames"
)

// LevelSample is one reading of a gear's light output.
type LevelSample struct {
	ActualLevel      byte
	RequestedLevel   byte
	OutputHundredths uint16
	Fading           bool
}

// StatusSample is one reading of a gear's status byte and failure flags.
type StatusSample struct {
	Status      byte
	LampFailure bool
	BusDown     bool
	LimitError  bool
}

// FrameCounters are cumulative frame-handling counters.
type FrameCounters struct {
	Received        uint64
	Executed        uint64
	Ignored         uint64
	RepeatsAccepted uint64
	RepeatsDropped  uint64
	Responses       uint64
}

// WriteLevel records a light output sample for a gear.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteLevel("kitchen", influxdb.LevelSample{ActualLevel: 254, OutputHundredths: 10000})
func (c *Client) WriteLevel(gearID string, s LevelSample, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(levelPoint(gearID, s, ts))
}

// WriteStatus records a status sample for a gear.
func (c *Client) WriteStatus(gearID string, s StatusSample, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statusPoint(gearID, s, ts))
}

// WriteFrameCounters records the cumulative frame counters for a gear.
func (c *Client) WriteFrameCounters(gearID string, fc FrameCounters, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(framesPoint(gearID, fc, ts))
}

func levelPoint(gearID string, s LevelSample, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementLevel,
		map[string]string{"gear_id": gearID},
		map[string]interface{}{
			"actual":            int64(s.ActualLevel),
			"requested":         int64(s.RequestedLevel),
			"output_hundredths": int64(s.OutputHundredths),
			"fading":            s.Fading,
		},
		ts,
	)
}

func statusPoint(gearID string, s StatusSample, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementStatus,
		map[string]string{"gear_id": gearID},
		map[string]interface{}{
			"status":       int64(s.Status),
			"lamp_failure": s.LampFailure,
			"bus_down":     s.BusDown,
			"limit_error":  s.LimitError,
		},
		ts,
	)
}

func framesPoint(gearID string, fc FrameCounters, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementFrames,
		map[string]string{"gear_id": gearID},
		map[string]interface{}{
			"received":         fc.Received,
			"executed":         fc.Executed,
			"ignored":          fc.Ignored,
			"repeats_accepted": fc.RepeatsAccepted,
			"repeats_dropped":  fc.RepeatsDropped,
			"responses":        fc.Responses,
		},
		ts,
	)
}
