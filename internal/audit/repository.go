// Package audit stores the trail of configuration changes made to each
// gear over the bus: short address, groups, random address, reset state,
// commissioning window and enable state.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// ErrInvalidEntry is returned by Create for an entry without gear or change.
var ErrInvalidEntry = errors.New("audit: entry needs a gear id and a change")

// Entry is one recorded configuration change.
type Entry struct {
	ID     string `json:"id"`
	GearID string `json:"gear_id"`
	Change string `json:"change"`

	// Old and New are JSON values; nil means unset.
	Old any `json:"old"`
	New any `json:"new"`

	// Source names the writer, "dali" for bus commands.
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter selects entries for List. Zero fields match everything.
type Filter struct {
	GearID string
	Change string
	Since  time.Time

	Limit  int // default DefaultLimit, at most MaxLimit
	Offset int
}

// Page is one page of List results, newest first.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository records and lists audit entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) (*Page, error)
}

// SQLiteRepository stores entries in the audit_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts e, filling in ID and CreatedAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.GearID == "" || e.Change == "" {
		return ErrInvalidEntry
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	oldJSON, err := encodeValue(e.Old)
	if err != nil {
		return fmt.Errorf("encoding old value: %w", err)
	}
	newJSON, err := encodeValue(e.New)
	if err != nil {
		return fmt.Errorf("encoding new value: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, gear_id, change, old_value, new_value, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.GearID, e.Change, oldJSON, newJSON, e.Source, e.CreatedAt.Format(timeLayout)); err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns the entries matching f, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*Page, error) {
	f.Limit = min(f.Limit, MaxLimit)
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	f.Offset = max(f.Offset, 0)

	where, args := f.where()

	var total int
	//nolint:gosec // where holds only ? placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	//nolint:gosec // where holds only ? placeholders
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, gear_id, change, old_value, new_value, source, created_at
		FROM audit_logs`+where+`
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	page := &Page{Entries: []Entry{}, Total: total, Limit: f.Limit, Offset: f.Offset}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return page, nil
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.GearID != "" {
		conds = append(conds, "gear_id = ?")
		args = append(args, f.GearID)
	}
	if f.Change != "" {
		conds = append(conds, "change = ?")
		args = append(args, f.Change)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                Entry
		oldJSON, newJSON sql.NullString
		createdAt        string
	)
	if err := rows.Scan(&e.ID, &e.GearID, &e.Change, &oldJSON, &newJSON, &e.Source, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning audit entry: %w", err)
	}

	var err error
	if e.Old, err = decodeValue(oldJSON); err != nil {
		return Entry{}, fmt.Errorf("audit entry %s: old value: %w", e.ID, err)
	}
	if e.New, err = decodeValue(newJSON); err != nil {
		return Entry{}, fmt.Errorf("audit entry %s: new value: %w", e.ID, err)
	}
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Entry{}, fmt.Errorf("audit entry %s: timestamp %q: %w", e.ID, createdAt, err)
	}
	return e, nil
}

// encodeValue stores nil as SQL NULL and everything else as JSON.
func encodeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeValue(s sql.NullString) (any, error) {
	if !s.Valid {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, err
	}
	return v, nil
}
