// Package session tracks durable login state. Two flags in the kv store
// (a logged-in boolean and the current user id) are the sole session
// signal consulted at cold start, deliberately independent of the identity
// provider's own session so login state is known before any network call.
package session

import (
	"context"
	"errors"

	"github.com/tracklet/tracklet/pkg/kvstore"
	"github.com/tracklet/tracklet/pkg/observability"
)

const (
	loggedInKey      = "session:is_logged_in"
	currentUserIDKey = "session:current_user_id"
)

// LiveSession exposes the identity provider's in-memory session. When it
// reports a user, that takes precedence over the durable flags.
type LiveSession interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Manager reads and writes the durable session flags
type Manager struct {
	kv      kvstore.Store
	live    LiveSession
	logger  *observability.Logger
	metrics *observability.Metrics
}

// ManagerOptions configures the manager
type ManagerOptions struct {
	// Live is optional; without it only the durable flags are consulted
	Live    LiveSession
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// NewManager creates a session manager over the kv backend
func NewManager(kv kvstore.Store, opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}
	return &Manager{
		kv:      kv,
		live:    opts.Live,
		logger:  opts.Logger.WithComponent("session"),
		metrics: opts.Metrics,
	}
}

// SetLoggedIn persists the logged-in flags for the user. Writes are
// sequential best-effort; the first failure is returned.
func (m *Manager) SetLoggedIn(ctx context.Context, userID string) error {
	m.metrics.RecordSessionFlagWrite("set_logged_in")

	if err := m.kv.SetBool(ctx, loggedInKey, true); err != nil {
		m.metrics.RecordStoreFailure("session", "set_logged_in")
		return err
	}
	if err := m.kv.SetString(ctx, currentUserIDKey, userID); err != nil {
		m.metrics.RecordStoreFailure("session", "set_user_id")
		return err
	}
	return nil
}

// Clear removes both flags. Both deletes are attempted even when the
// first fails, so a partial failure cannot leave a stale user id behind a
// cleared login flag.
func (m *Manager) Clear(ctx context.Context) error {
	m.metrics.RecordSessionFlagWrite("clear")

	var errs []error
	if err := m.kv.Delete(ctx, loggedInKey); err != nil {
		m.metrics.RecordStoreFailure("session", "clear_logged_in")
		errs = append(errs, err)
	}
	if err := m.kv.Delete(ctx, currentUserIDKey); err != nil {
		m.metrics.RecordStoreFailure("session", "clear_user_id")
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IsLoggedIn reports login state. A live provider session wins; otherwise
// the durable flag decides, with store errors treated as logged out.
func (m *Manager) IsLoggedIn(ctx context.Context) bool {
	if m.live != nil {
		if _, ok := m.live.CurrentUserID(ctx); ok {
			return true
		}
	}

	loggedIn, found, err := m.kv.GetBool(ctx, loggedInKey)
	if err != nil {
		m.logger.WithError(err).Warn("session flag read failed, treating as logged out")
		m.metrics.RecordStoreFailure("session", "get_logged_in")
		return false
	}
	return found && loggedIn
}

// CurrentUserID resolves the logged-in user id, preferring the live
// provider session over the durable flag
func (m *Manager) CurrentUserID(ctx context.Context) (string, bool) {
	if m.live != nil {
		if id, ok := m.live.CurrentUserID(ctx); ok {
			return id, true
		}
	}

	if !m.IsLoggedIn(ctx) {
		return "", false
	}

	id, found, err := m.kv.GetString(ctx, currentUserIDKey)
	if err != nil {
		m.logger.WithError(err).Warn("session user id read failed")
		m.metrics.RecordStoreFailure("session", "get_user_id")
		return "", false
	}
	if !found || id == "" {
		return "", false
	}
	return id, true
}
