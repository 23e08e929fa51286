package audit

import (
	"context"

	"github.com/tracklet/tracklet/pkg/observability"
)

// LogSink mirrors audit events into the structured service log
type LogSink struct {
	logger *observability.Logger
}

// NewLogSink creates a sink writing to the given logger
func NewLogSink(logger *observability.Logger) *LogSink {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &LogSink{logger: logger.WithComponent("audit")}
}

// Log writes the event as one structured log line
func (s *LogSink) Log(ctx context.Context, event *Event) error {
	entry := s.logger.WithFields(map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	})
	if event.ActorID != "" {
		entry = entry.WithField("actor_id", event.ActorID)
	}
	if event.SubjectID != "" {
		entry = entry.WithField("subject_id", event.SubjectID)
	}
	if event.RequestID != "" {
		entry = entry.WithField("request_id", event.RequestID)
	}
	if event.ErrorMessage != "" {
		entry = entry.WithField("error", event.ErrorMessage)
	}
	for k, v := range event.Metadata {
		entry = entry.WithField("meta_"+k, v)
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}

	switch event.Status {
	case EventStatusFailure:
		entry.Error(msg)
	case EventStatusDenied:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
	return nil
}

// Close is a no-op; the underlying logger is owned by the caller
func (s *LogSink) Close() error { return nil }
