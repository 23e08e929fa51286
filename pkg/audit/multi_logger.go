package audit

import (
	"context"
	"fmt"
	"strings"
)

// MultiLogger fans each event out to several sinks. A failing sink does not
// stop delivery to the others.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger creates a fan-out logger
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	return &MultiLogger{sinks: sinks}
}

// Log delivers the event to every sink and aggregates failures
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var failures []string
	for _, sink := range m.sinks {
		if err := sink.Log(ctx, event); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("audit delivery failed for %d of %d sinks: %s",
			len(failures), len(m.sinks), strings.Join(failures, "; "))
	}
	return nil
}

// Close closes every sink and aggregates failures
func (m *MultiLogger) Close() error {
	var failures []string
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("audit close failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
