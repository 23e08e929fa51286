package audit

import (
	"context"
	"time"
)

// Logger is the sink interface for audit events
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink
	Close() error
}

type loggerContextKey struct{}

// WithLogger attaches an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext retrieves the audit logger from context, falling back to a
// no-op sink so call sites never need a nil check
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards every event
type NopLogger struct{}

// Log discards the event
func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }

// Close is a no-op
func (NopLogger) Close() error { return nil }

// NewEvent creates an event with the timestamp set
func NewEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
}

// WithActor sets the acting user
func (e *Event) WithActor(actorID string) *Event {
	e.ActorID = actorID
	return e
}

// WithSubject sets the user the operation targets
func (e *Event) WithSubject(subjectID string) *Event {
	e.SubjectID = subjectID
	return e
}

// WithMessage sets the human-readable summary
func (e *Event) WithMessage(message string) *Event {
	e.Message = message
	return e
}

// WithError records the failure detail
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// WithMetadata attaches one metadata entry
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRequest attaches request context fields
func (e *Event) WithRequest(requestID, ipAddress, userAgent string) *Event {
	e.RequestID = requestID
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}
