package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	migrationsMu sync.RWMutex
	migrationsFS fs.FS
)

// RegisterMigrations sets the filesystem Migrate reads *.sql files from
// (its root directory). The migrations package calls it from init.
func RegisterMigrations(fsys fs.FS) {
	migrationsMu.Lock()
	migrationsFS = fsys
	migrationsMu.Unlock()
}

func registeredMigrations() fs.FS {
	migrationsMu.RLock()
	defer migrationsMu.RUnlock()
	return migrationsFS
}

// Migration is one schema step.
type Migration struct {
	// Version is the YYYYMMDD_HHMMSS filename prefix; versions sort in
	// application order.
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies every registered migration that has not been applied,
// oldest first. Each migration commits on its own, so a failure leaves the
// earlier ones in place and a later run resumes from the failed one.
func (db *DB) Migrate(ctx context.Context) error {
	pending, err := db.pendingMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. Used by
// tests and when downgrading the daemon.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1].Version

	all, err := loadMigrations(registeredMigrations())
	if err != nil {
		return err
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == latest })
	if i < 0 {
		return fmt.Errorf("migration %s not registered", latest)
	}
	m := all[i]
	if m.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", latest)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
			return fmt.Errorf("removing migration record: %w", err)
		}
		return nil
	})
}

// MigrationStatus returns the applied and still pending migrations.
func (db *DB) MigrationStatus(ctx context.Context) (applied []AppliedMigration, pending []Migration, err error) {
	if applied, err = db.appliedMigrations(ctx); err != nil {
		return nil, nil, err
	}
	if pending, err = db.pendingMigrations(ctx); err != nil {
		return nil, nil, err
	}
	return applied, pending, nil
}

func (db *DB) pendingMigrations(ctx context.Context) ([]Migration, error) {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	all, err := loadMigrations(registeredMigrations())
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}
	var pending []Migration
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// appliedMigrations creates schema_migrations if needed and returns its
// rows in version order.
func (db *DB) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	if db.DB == nil {
		return nil, ErrClosed
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		var at string
		if err := rows.Scan(&a.Version, &at); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, at) //nolint:errcheck // written by Migrate
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return out, nil
}

// loadMigrations reads the *.sql files at the root of fsys. Files that do
// not follow the naming scheme are ignored; a down file without an up file
// is an error.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	downOnly := make(map[string]bool)
	for _, file := range names {
		version, name, up, ok := parseMigrationFilename(file)
		if !ok {
			continue
		}
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if up {
			m.Name = name
			m.UpSQL = string(body)
			delete(downOnly, version)
		} else {
			m.DownSQL = string(body)
			if m.UpSQL == "" {
				downOnly[version] = true
			}
		}
	}
	for version := range downOnly {
		return nil, fmt.Errorf("migration %s has a down file but no up file", version)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// parseMigrationFilename splits "20260301_120000_gear_state.up.sql" into
// version "20260301_120000", name "gear_state" and direction up.
func parseMigrationFilename(file string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(file, ".sql")
	if !found {
		return "", "", false, false
	}
	switch {
	case strings.HasSuffix(base, ".up"):
		base, up = strings.TrimSuffix(base, ".up"), true
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", false, false
	}

	date, rest, found := strings.Cut(base, "_")
	if !found || len(date) != 8 {
		return "", "", false, false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if len(clock) != 6 {
		return "", "", false, false
	}
	if name == "" {
		name = date + "_" + clock
	}
	return date + "_" + clock, name, up, true
}
