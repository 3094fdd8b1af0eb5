package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers treat it as "run without telemetry", not as a failure.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed wraps the ping error from Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps batch errors passed to the OnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
