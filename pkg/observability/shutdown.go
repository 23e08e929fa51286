package observability

import (
	"context"
	"sync"
	"time"
)

// ShutdownFunc releases one resource during shutdown
type ShutdownFunc func(ctx context.Context) error

// Shutdowner runs registered cleanup functions in reverse registration
// order, so dependents close before their dependencies.
type Shutdowner struct {
	mu      sync.Mutex
	funcs   []namedShutdown
	timeout time.Duration
	logger  *Logger
}

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// NewShutdowner creates a shutdown coordinator
func NewShutdowner(timeout time.Duration, logger *Logger) *Shutdowner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Shutdowner{timeout: timeout, logger: logger}
}

// Register adds a named cleanup step
func (s *Shutdowner) Register(name string, fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs = append(s.funcs, namedShutdown{name: name, fn: fn})
}

// Shutdown runs all cleanup steps in reverse order. Failures are logged and
// do not stop the remaining steps; the first error is returned.
func (s *Shutdowner) Shutdown() error {
	s.mu.Lock()
	funcs := make([]namedShutdown, len(s.funcs))
	copy(funcs, s.funcs)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var firstErr error
	for i := len(funcs) - 1; i >= 0; i-- {
		step := funcs[i]
		s.logger.Debug("shutting down", "step", step.name)
		if err := step.fn(ctx); err != nil {
			s.logger.WithError(err).Error("shutdown step failed", "step", step.name)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
