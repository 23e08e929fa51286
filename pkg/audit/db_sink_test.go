package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDBSink(t *testing.T) *DBSink {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sink, err := NewDBSink(db, DialectSQLite)
	require.NoError(t, err)
	return sink
}

func logTestEvent(t *testing.T, sink *DBSink, eventType EventType, status EventStatus, actorID string, ts time.Time) {
	t.Helper()
	event := &Event{
		Timestamp: ts,
		EventType: eventType,
		Status:    status,
		ActorID:   actorID,
		SubjectID: actorID,
		Message:   string(eventType),
		Metadata:  map[string]interface{}{"source": "test"},
	}
	require.NoError(t, sink.Log(context.Background(), event))
}

func TestDBSinkLogAndSearch(t *testing.T) {
	sink := newTestDBSink(t)
	now := time.Now().UTC()

	logTestEvent(t, sink, EventTypeLogin, EventStatusSuccess, "user-1", now.Add(-2*time.Hour))
	logTestEvent(t, sink, EventTypeLoginFailed, EventStatusFailure, "user-2", now.Add(-time.Hour))
	logTestEvent(t, sink, EventTypeLogout, EventStatusSuccess, "user-1", now)

	all, err := sink.Search(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, EventTypeLogout, all[0].EventType, "newest first")
	assert.Equal(t, "test", all[0].Metadata["source"])

	byActor, err := sink.Search(context.Background(), Filter{ActorID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	failed := EventStatusFailure
	byStatus, err := sink.Search(context.Background(), Filter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, EventTypeLoginFailed, byStatus[0].EventType)

	byType, err := sink.Search(context.Background(), Filter{
		EventTypes: []EventType{EventTypeLogin, EventTypeLogout},
	})
	require.NoError(t, err)
	assert.Len(t, byType, 2)
}

func TestDBSinkSearchTimeRangeAndLimit(t *testing.T) {
	sink := newTestDBSink(t)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		logTestEvent(t, sink, EventTypeLogin, EventStatusSuccess, "user-1", now.Add(-time.Duration(i)*time.Hour))
	}

	start := now.Add(-150 * time.Minute)
	inRange, err := sink.Search(context.Background(), Filter{StartTime: &start})
	require.NoError(t, err)
	assert.Len(t, inRange, 3)

	limited, err := sink.Search(context.Background(), Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDBSinkEventsBeforeAndDelete(t *testing.T) {
	sink := newTestDBSink(t)
	now := time.Now().UTC()

	logTestEvent(t, sink, EventTypeLogin, EventStatusSuccess, "user-1", now.Add(-48*time.Hour))
	logTestEvent(t, sink, EventTypeLogin, EventStatusSuccess, "user-1", now.Add(-36*time.Hour))
	logTestEvent(t, sink, EventTypeLogin, EventStatusSuccess, "user-1", now)

	cutoff := now.Add(-24 * time.Hour)

	aged, err := sink.EventsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, aged, 2)
	assert.True(t, aged[0].Timestamp.Before(aged[1].Timestamp), "oldest first")

	deleted, err := sink.DeleteBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := sink.Search(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestNewDBSinkRequiresDB(t *testing.T) {
	_, err := NewDBSink(nil, DialectSQLite)
	assert.Error(t, err)
}

func TestNewDBSinkPostgresDDL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Postgres has no rowid; the id column must be an identity column or
	// inserts that omit it violate the primary key's not-null constraint.
	mock.ExpectExec("BIGSERIAL PRIMARY KEY").WillReturnResult(sqlmock.NewResult(0, 0))

	sink, err := NewDBSink(db, DialectPostgres)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, sink.Log(context.Background(), &Event{
		Timestamp: time.Now().UTC(),
		EventType: EventTypeLogin,
		Status:    EventStatusSuccess,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
