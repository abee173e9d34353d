package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed state store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath, applies
// pragmas and runs migrations. A leading "~/" is expanded to the home
// directory; ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.HasPrefix(dbPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[2:])
	}

	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite has a single writer, and each ":memory:"
	// connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the entry stored under scope/key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, scope, key string) (*Entry, error) {
	if err := validateAddress(scope, key); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT scope, key, version, value, updated_at
		FROM state_entries
		WHERE scope = ? AND key = ?
	`, scope, key)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", scope, key, err)
	}
	return entry, nil
}

// Put stores value under scope/key, replacing any previous entry.
func (s *SQLiteStore) Put(ctx context.Context, scope, key string, version int, value []byte) error {
	if err := validateAddress(scope, key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state_entries (scope, key, version, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET
			version = excluded.version,
			value = excluded.value,
			updated_at = excluded.updated_at
	`, scope, key, version, value, now)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", scope, key, err)
	}
	return nil
}

// Delete removes scope/key. Deleting a missing entry returns ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, scope, key string) error {
	if err := validateAddress(scope, key); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM state_entries WHERE scope = ? AND key = ?`, scope, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", scope, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", scope, key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all entries in scope ordered by key.
func (s *SQLiteStore) List(ctx context.Context, scope string) ([]Entry, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, key, version, value, updated_at
		FROM state_entries
		WHERE scope = ?
		ORDER BY key
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", scope, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", scope, err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// scanEntry scans a row into an Entry, parsing the timestamp.
func scanEntry(scanner interface{ Scan(...any) error }) (*Entry, error) {
	var entry Entry
	var updatedAt string

	if err := scanner.Scan(&entry.Scope, &entry.Key, &entry.Version, &entry.Value, &updatedAt); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		entry.UpdatedAt = t
	}
	return &entry, nil
}

func validateAddress(scope, key string) error {
	if err := ValidateScope(scope); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return nil
}
