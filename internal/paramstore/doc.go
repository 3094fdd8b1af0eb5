// Package paramstore provides the parameter-store collaborator of a DALI
// control gear.
//
// A store holds one byte per gear.ParamID together with its factory
// default, and the memory banks read and written through DTR1:DTR0:
//
//   - Bank 0 is read-only and describes the device (GTIN, firmware and
//     hardware versions, serial number, implemented standards).
//   - Bank 1 carries OEM data. Location 2 is the lock byte; the remaining
//     writable locations accept writes only while it holds 0x55.
//
// Two implementations are provided. Memory keeps everything in process and
// is used by the simulator and tests. SQLiteStore layers write-through
// persistence onto Memory: parameters live in the gear_parameters table and
// each memory bank is a CBOR blob in gear_memory_banks.
//
// # Error Model
//
// gear.ParameterStore has no error returns; the core treats the store as
// infallible. SQLiteStore therefore logs persistence failures and keeps
// serving the in-memory copy. Load and Flush return errors to the caller
// that owns the database.
package paramstore
