// Package dali runs a DALI control gear against a real transport.
//
// The gear core (internal/gear) is pure: it never owns a clock, a socket or
// a goroutine. This package supplies them.
//
// # Architecture
//
//	Transceiver ──frame──► Runner (one goroutine) ──► gear.Gear
//	     ▲                   │    ▲       │
//	     └──backward frame───┘    │       ▼
//	                        timerSet   Observers (StateOutput, Auditor)
//	                     (time.AfterFunc)   │
//	                                        ▼
//	                              MQTT state/lamp/event, InfluxDB, audit_logs
//
// All gear entry points are called from the Runner goroutine. Timer expiries
// and received frames are posted to it over a channel, so the core sees a
// single ordered stream of events.
//
// # Transports
//
//   - MQTTTransceiver: hex payloads on graylogic/dali/{gear}/forward and /backward
//   - SerialTransceiver: line-oriented hex over a USB/serial DALI interface
//   - NATSTransceiver: subjects {prefix}.{gear}.forward and .backward
//
// # Thread Safety
//
// Runner, StateOutput, Auditor and HealthReporter are safe for concurrent use.
package dali
