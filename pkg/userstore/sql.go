package userstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// SQLStore persists user records over database/sql. It works with both the
// sqlite3 and postgres drivers. Notification preferences are stored as a
// JSON column, matching the flat shape of the record.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQL-backed user record store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the backing table if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS user_records (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL,
			username_lower TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT '',
			date_of_birth TEXT NOT NULL DEFAULT '',
			notification_preferences TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create user_records table: %w", err)
	}
	return nil
}

const userColumns = `id, email, username, full_name, gender, date_of_birth, notification_preferences, created_at, updated_at`

func scanUser(scanner interface {
	Scan(dest ...interface{}) error
}) (*UserRecord, error) {
	var record UserRecord
	var prefsJSON string

	err := scanner.Scan(
		&record.ID,
		&record.Email,
		&record.Username,
		&record.FullName,
		&record.Gender,
		&record.DateOfBirth,
		&prefsJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(prefsJSON), &record.NotificationPreferences); err != nil {
		// A corrupt preference blob should not make the record unreadable
		record.NotificationPreferences = DefaultNotificationPreferences()
	}

	return &record, nil
}

// Get retrieves a record by provider user id
func (s *SQLStore) Get(ctx context.Context, id string) (*UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM user_records WHERE id = $1`

	record, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user record: %w", err)
	}
	return record, nil
}

// GetAll returns every stored record
func (s *SQLStore) GetAll(ctx context.Context) ([]*UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM user_records ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list user records: %w", err)
	}
	defer rows.Close()

	var records []*UserRecord
	for rows.Next() {
		record, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// FindByEmail retrieves a record by lower-cased email
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM user_records WHERE email = $1`

	record, err := scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user record by email: %w", err)
	}
	return record, nil
}

// FindByUsername retrieves a record by case-insensitive username match
func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM user_records WHERE username_lower = $1`

	record, err := scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(username))))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user record by username: %w", err)
	}
	return record, nil
}

// Put inserts or replaces a record keyed by its ID
func (s *SQLStore) Put(ctx context.Context, record *UserRecord) error {
	record.Normalize()

	prefsJSON, err := json.Marshal(record.NotificationPreferences)
	if err != nil {
		return fmt.Errorf("failed to marshal notification preferences: %w", err)
	}

	query := `
		INSERT INTO user_records (id, email, username, username_lower, full_name, gender, date_of_birth, notification_preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email = $2,
			username = $3,
			username_lower = $4,
			full_name = $5,
			gender = $6,
			date_of_birth = $7,
			notification_preferences = $8,
			updated_at = $10
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.Email,
		record.Username,
		strings.ToLower(record.Username),
		record.FullName,
		record.Gender,
		record.DateOfBirth,
		string(prefsJSON),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put user record: %w", err)
	}
	return nil
}

// Delete removes a record
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user record: %w", err)
	}
	return nil
}
