package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Dialect selects the DDL flavor for the audit table
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DBSink persists audit events to a SQL database
type DBSink struct {
	db      *sql.DB
	dialect Dialect
}

// NewDBSink creates a database-backed audit sink and ensures its table
func NewDBSink(db *sql.DB, dialect Dialect) (*DBSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if dialect == "" {
		dialect = DialectSQLite
	}

	sink := &DBSink{db: db, dialect: dialect}
	if err := sink.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return sink, nil
}

func (s *DBSink) ensureTable() error {
	// SQLite fills an INTEGER PRIMARY KEY from the rowid; Postgres needs
	// an explicit identity column or inserts that omit id fail.
	idColumn := "id INTEGER PRIMARY KEY"
	if s.dialect == DialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		` + idColumn + `,
		timestamp TIMESTAMP NOT NULL,
		event_type TEXT NOT NULL,
		status TEXT NOT NULL,
		actor_id TEXT,
		subject_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		request_id TEXT,
		message TEXT,
		error_message TEXT,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events(subject_id);
	`
	_, err := s.db.Exec(query)
	return err
}

// Log inserts the event
func (s *DBSink) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, status, actor_id, subject_id,
			ip_address, user_agent, request_id, message, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.ActorID, event.SubjectID,
		event.IPAddress, event.UserAgent, event.RequestID,
		event.Message, event.ErrorMessage, string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Search returns events matching the filter, newest first
func (s *DBSink) Search(ctx context.Context, filter Filter) ([]*Event, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.StartTime != nil {
		addCondition("timestamp >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		addCondition("timestamp < $%d", *filter.EndTime)
	}
	if filter.ActorID != "" {
		addCondition("actor_id = $%d", filter.ActorID)
	}
	if filter.SubjectID != "" {
		addCondition("subject_id = $%d", filter.SubjectID)
	}
	if filter.Status != nil {
		addCondition("status = $%d", string(*filter.Status))
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, 0, len(filter.EventTypes))
		for _, et := range filter.EventTypes {
			args = append(args, string(et))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}

	query := `
		SELECT id, timestamp, event_type, status, actor_id, subject_id,
		       ip_address, user_agent, request_id, message, error_message, metadata
		FROM audit_events
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// EventsBefore returns every event older than the cutoff, oldest first,
// for archival
func (s *DBSink) EventsBefore(ctx context.Context, cutoff time.Time) ([]*Event, error) {
	query := `
		SELECT id, timestamp, event_type, status, actor_id, subject_id,
		       ip_address, user_agent, request_id, message, error_message, metadata
		FROM audit_events
		WHERE timestamp < $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query aged audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteBefore removes events older than the cutoff after archival
func (s *DBSink) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged audit events: %w", err)
	}
	return result.RowsAffected()
}

// Close is a no-op; the *sql.DB is owned by the caller
func (s *DBSink) Close() error { return nil }

func scanEvent(rows *sql.Rows) (*Event, error) {
	var event Event
	var actorID, subjectID, ipAddress, userAgent, requestID sql.NullString
	var message, errorMessage, metadataJSON sql.NullString

	err := rows.Scan(
		&event.ID, &event.Timestamp, &event.EventType, &event.Status,
		&actorID, &subjectID, &ipAddress, &userAgent, &requestID,
		&message, &errorMessage, &metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	event.ActorID = actorID.String
	event.SubjectID = subjectID.String
	event.IPAddress = ipAddress.String
	event.UserAgent = userAgent.String
	event.RequestID = requestID.String
	event.Message = message.String
	event.ErrorMessage = errorMessage.String

	if metadataJSON.String != "" {
		// Corrupt metadata should not make the whole trail unreadable.
		_ = json.Unmarshal([]byte(metadataJSON.String), &event.Metadata)
	}
	return &event, nil
}
