// Package database opens the SQLite file that holds a gear's persistent
// state and applies the embedded schema migrations.
//
// Tables (see the migrations package):
//   - gear_parameters: one row per persisted parameter of each gear
//   - gear_memory_banks: writable memory banks, CBOR encoded
//   - audit_logs: configuration change trail
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are registered by importing the migrations package for its
// side effect. Files are named YYYYMMDD_HHMMSS_name.up.sql with an optional
// matching .down.sql, and each one is applied in its own transaction.
//
// The connection pool is limited to one connection. Parameter writes come
// from a single runner goroutine, so a single writer costs nothing.
package database
