// Package gear implements the command/control core of a DALI control gear.
//
// The core receives two-byte forward frames, resolves them against three
// command tables (normal, special, extended), executes their side effects
// on a cached parameter set, drives the light-output fading engine and
// takes part in the bus-wide random-address commissioning protocol.
//
// # Architecture
//
//	transceiver ──frame──► Gear.HandleFrame ──► resolver ──► table entry
//	                                │                          │
//	                                ▼                          ▼
//	                          repeat arbitration         handler(session)
//	                                │                          │
//	                                ▼                          ▼
//	                      Result{Action, Response}   params / addressing / fade
//
// The core never owns a clock, a socket or a goroutine. Every wait is
// expressed as an Action returned to the caller (RequestTimer100ms,
// RequestTimer200ms, ClearAllTimers) or as a Scheduler call for the
// 15-minute commissioning window. The caller feeds expiries back through
// HandleTimeout and drives fading through Tick.
//
// # Error Model
//
// Frame handling never fails. Unknown opcodes, frames addressed elsewhere
// and commands gated outside their window are silent no-ops, as the bus
// has no acknowledgement and is occasionally noisy. Clamped levels raise
// the limit-error status bit instead of an error.
//
// # Thread Safety
//
// Gear serialises all entry points with a mutex. The Session record it
// guards is single-threaded and must not be shared.
//
// # References
//
//   - IEC 62386-102 (control gear), IEC 62386-207 (LED modules, DT6)
package gear
