package paramstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

// Logger is the logging interface used by SQLiteStore.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SQLiteStore is a Memory store with write-through persistence.
// The database must have the gear_parameters and gear_memory_banks tables.
//
// Only values that differ from the factory default need a row; Load
// applies whatever rows exist on top of the defaults.
//
// Thread Safety: All methods are safe for concurrent use.
type SQLiteStore struct {
	*Memory

	db     *sql.DB
	gearID string
	logger Logger

	// Prepared upserts, created by Load and reused by every write.
	paramStmt *sql.Stmt
	bankStmt  *sql.Stmt
	stmtMu    sync.Mutex
}

// NewSQLiteStore creates a store for one gear instance. Call Load before
// handing it to the core.
//
// Parameters:
//   - db: Database with the gear tables migrated
//   - gearID: Key of this gear's rows
//   - id: Device identity used for defaults and bank 0
func NewSQLiteStore(db *sql.DB, gearID string, id Identity) (*SQLiteStore, error) {
	mem, err := NewMemory(id)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{
		Memory: mem,
		db:     db,
		gearID: gearID,
	}, nil
}

// SetLogger sets the logger for the store.
func (s *SQLiteStore) SetLogger(logger Logger) {
	s.logger = logger
}

// Load reads persisted parameters and memory banks and prepares the
// write statements. Calling it again reloads the persisted state.
func (s *SQLiteStore) Load(ctx context.Context) error {
	values, err := s.loadParameters(ctx)
	if err != nil {
		return err
	}
	bank1, err := s.loadBank(ctx, 1)
	if err != nil {
		return err
	}
	s.restore(values, bank1)

	if err := s.prepare(ctx); err != nil {
		return err
	}
	s.log("parameter store loaded", "gear_id", s.gearID, "parameters", len(values))
	return nil
}

func (s *SQLiteStore) loadParameters(ctx context.Context) (map[gear.ParamID]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT param, value FROM gear_parameters WHERE gear_id = ?", s.gearID)
	if err != nil {
		return nil, fmt.Errorf("querying gear parameters: %w", err)
	}
	defer rows.Close()

	values := make(map[gear.ParamID]byte)
	for rows.Next() {
		var name string
		var value int
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning gear parameter: %w", err)
		}
		id, ok := gear.ParseParamID(name)
		if !ok || value < 0 || value > 0xFF {
			s.warn("skipping unknown parameter row", "param", name, "value", value)
			continue
		}
		values[id] = byte(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gear parameters: %w", err)
	}
	return values, nil
}

func (s *SQLiteStore) loadBank(ctx context.Context, number byte) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM gear_memory_banks WHERE gear_id = ? AND bank = ?",
		s.gearID, number,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying memory bank %d: %w", number, err)
	}

	got, data, err := decodeBank(blob)
	if err != nil {
		return nil, err
	}
	if got != number {
		return nil, fmt.Errorf("%w: row for bank %d holds bank %d", ErrCorruptBank, number, got)
	}
	return data, nil
}

func (s *SQLiteStore) prepare(ctx context.Context) error {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()

	if s.paramStmt != nil {
		return nil // Already prepared
	}

	paramStmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO gear_parameters (gear_id, param, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(gear_id, param) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing parameter upsert statement: %w", err)
	}

	bankStmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO gear_memory_banks (gear_id, bank, content, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(gear_id, bank) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		paramStmt.Close()
		return fmt.Errorf("preparing memory bank upsert statement: %w", err)
	}

	s.paramStmt = paramStmt
	s.bankStmt = bankStmt
	return nil
}

// Close releases the prepared statements. The database stays open.
func (s *SQLiteStore) Close() {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()

	if s.paramStmt != nil {
		s.paramStmt.Close()
		s.paramStmt = nil
	}
	if s.bankStmt != nil {
		s.bankStmt.Close()
		s.bankStmt = nil
	}
}

// Put implements gear.ParameterStore and persists the value.
func (s *SQLiteStore) Put(id gear.ParamID, value byte) {
	if !id.Valid() {
		return
	}
	s.Memory.Put(id, value)

	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	if s.paramStmt == nil {
		return // Not loaded
	}
	if _, err := s.paramStmt.Exec(s.gearID, id.String(), int(value), now()); err != nil {
		s.logError("persisting parameter", err, "param", id.String())
	}
}

// WriteMemory implements gear.ParameterStore and persists the bank.
func (s *SQLiteStore) WriteMemory(bank, addr, value byte) bool {
	if !s.Memory.WriteMemory(bank, addr, value) {
		return false
	}
	s.persistBank(bank)
	return true
}

// ResetMemory implements gear.ParameterStore and persists the bank.
func (s *SQLiteStore) ResetMemory(bank byte) {
	if s.resetMemory(bank) {
		s.persistBank(bank)
	}
}

func (s *SQLiteStore) persistBank(number byte) {
	blob, err := encodeBank(number, s.Bank(number))
	if err != nil {
		s.logError("encoding memory bank", err, "bank", number)
		return
	}

	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	if s.bankStmt == nil {
		return // Not loaded
	}
	if _, err := s.bankStmt.Exec(s.gearID, int(number), blob, now()); err != nil {
		s.logError("persisting memory bank", err, "bank", number)
	}
}

// Flush writes every parameter and the writable bank in one transaction.
// Used after provisioning a new gear so its full state is on disk.
func (s *SQLiteStore) Flush(ctx context.Context) error {
	blob, err := encodeBank(1, s.Bank(1))
	if err != nil {
		return fmt.Errorf("encoding memory bank: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	ts := now()
	values := s.Values()
	for id := gear.ParamID(0); id < gear.ParamCount; id++ {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gear_parameters (gear_id, param, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(gear_id, param) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, s.gearID, id.String(), int(values[id]), ts); err != nil {
			return fmt.Errorf("writing parameter %s: %w", id, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gear_memory_banks (gear_id, bank, content, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(gear_id, bank) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`, s.gearID, blob, ts); err != nil {
		return fmt.Errorf("writing memory bank: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing flush: %w", err)
	}
	return nil
}

// encodeBank encodes a bank as the CBOR array [number, content].
func encodeBank(number byte, content []byte) ([]byte, error) {
	return cbor.Marshal([]interface{}{uint64(number), content})
}

// decodeBank is the inverse of encodeBank.
func decodeBank(blob []byte) (byte, []byte, error) {
	var msg []interface{}
	if err := cbor.Unmarshal(blob, &msg); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrCorruptBank, err)
	}
	if len(msg) != 2 {
		return 0, nil, fmt.Errorf("%w: expected 2-element array, got %d elements", ErrCorruptBank, len(msg))
	}
	number, ok := msg[0].(uint64)
	if !ok || number > 0xFF {
		return 0, nil, fmt.Errorf("%w: bad bank number %v", ErrCorruptBank, msg[0])
	}
	content, ok := msg[1].([]byte)
	if !ok {
		return 0, nil, fmt.Errorf("%w: expected byte string, got %T", ErrCorruptBank, msg[1])
	}
	return byte(number), content, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// log logs an info message if logger is set.
func (s *SQLiteStore) log(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Info(msg, keysAndValues...)
	}
}

func (s *SQLiteStore) warn(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error if logger is set.
func (s *SQLiteStore) logError(msg string, err error, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Error(msg, append([]any{"error", err, "gear_id", s.gearID}, keysAndValues...)...)
	}
}
