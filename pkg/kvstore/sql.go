package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStore persists key-value entries in a single table. It works with both
// the sqlite3 and postgres drivers; the schema uses no driver-specific
// features beyond upsert on the primary key.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQL-backed store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the backing table if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create kv_entries table: %w", err)
	}
	return nil
}

func (s *SQLStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStore) set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// GetString retrieves a string value
func (s *SQLStore) GetString(ctx context.Context, key string) (string, bool, error) {
	return s.get(ctx, key)
}

// SetString stores a string value
func (s *SQLStore) SetString(ctx context.Context, key, value string) error {
	return s.set(ctx, key, value)
}

// GetBool retrieves a boolean value. Values written by anything other than
// SetBool report false rather than an error.
func (s *SQLStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	value, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return false, ok, err
	}
	return value == boolTrue, true, nil
}

// SetBool stores a boolean value
func (s *SQLStore) SetBool(ctx context.Context, key string, value bool) error {
	v := boolFalse
	if value {
		v = boolTrue
	}
	return s.set(ctx, key, v)
}

// GetTime retrieves a timestamp value
func (s *SQLStore) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	value, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	t, err := time.Parse(timeFormat, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse timestamp for key %s: %w", key, err)
	}
	return t, true, nil
}

// SetTime stores a timestamp value
func (s *SQLStore) SetTime(ctx context.Context, key string, value time.Time) error {
	return s.set(ctx, key, value.UTC().Format(timeFormat))
}

// Delete removes a key
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}
