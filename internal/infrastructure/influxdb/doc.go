// Package influxdb writes gear telemetry.
//
// Three measurements, all tagged gear_id:
//
//	dali_level   actual, requested, output_hundredths, fading
//	dali_status  status byte, lamp_failure, bus_down, limit_error
//	dali_frames  cumulative frame counters
//
// Telemetry is optional. Connect returns ErrDisabled when influxdb.enabled
// is false and the daemon runs without it. Writes are queued and batched;
// failures reach the callback given to SetOnError.
package influxdb
