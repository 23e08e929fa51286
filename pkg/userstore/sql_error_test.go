package userstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSQLStore_GetPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT .* FROM user_records WHERE id").
		WillReturnError(errors.New("disk I/O error"))

	store := NewSQLStore(db)
	_, err = store.Get(context.Background(), "uid-1")
	if err == nil {
		t.Fatal("Expected error from failing query")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}

func TestSQLStore_PutPropagatesExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO user_records").
		WillReturnError(errors.New("database is locked"))

	store := NewSQLStore(db)
	err = store.Put(context.Background(), testRecord("uid-1", "a@example.com", "a"))
	if err == nil {
		t.Fatal("Expected error from failing exec")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}

func TestSQLStore_CorruptPreferencesFallBackToDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "email", "username", "full_name", "gender", "date_of_birth",
		"notification_preferences", "created_at", "updated_at",
	}).AddRow("uid-1", "a@example.com", "a", "", "", "", "{not json", now, now)

	mock.ExpectQuery("SELECT .* FROM user_records WHERE id").WillReturnRows(rows)

	store := NewSQLStore(db)
	record, err := store.Get(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record == nil {
		t.Fatal("Expected record")
	}
	if len(record.NotificationPreferences) != 4 {
		t.Errorf("Expected default preferences on corrupt blob, got %v", record.NotificationPreferences)
	}
}
