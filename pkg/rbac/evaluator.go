package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tracklet/tracklet/pkg/audit"
	"github.com/tracklet/tracklet/pkg/observability"
	"github.com/tracklet/tracklet/pkg/permissions"
)

var (
	// ErrNotAuthorized is returned when the acting user lacks the
	// capability an operation requires
	ErrNotAuthorized = errors.New("not authorized")

	// ErrViewerRoleRequired is returned when granting access to a user
	// who does not hold the healthcare viewer role
	ErrViewerRoleRequired = errors.New("grantee must hold the healthcare viewer role")
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 30 * time.Second
)

// Evaluator makes authorization decisions over the role store
type Evaluator struct {
	store   *RoleStore
	cache   *expirable.LRU[string, permissions.Role]
	logger  *observability.Logger
	metrics *observability.Metrics
	auditor audit.Logger

	now func() time.Time
}

// EvaluatorOptions configures the evaluator. Zero values select defaults.
type EvaluatorOptions struct {
	CacheSize int
	CacheTTL  time.Duration
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Auditor   audit.Logger
	Now       func() time.Time
}

// NewEvaluator creates an evaluator over the given role store
func NewEvaluator(store *RoleStore, opts EvaluatorOptions) *Evaluator {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}
	if opts.Auditor == nil {
		opts.Auditor = audit.NopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Evaluator{
		store:   store,
		cache:   expirable.NewLRU[string, permissions.Role](opts.CacheSize, nil, opts.CacheTTL),
		logger:  opts.Logger.WithComponent("rbac"),
		metrics: opts.Metrics,
		auditor: opts.Auditor,
		now:     opts.Now,
	}
}

// GetRole resolves the effective role for a user. It never fails: absent
// assignments, unrecognized values, and store errors all resolve to the
// default user role.
func (e *Evaluator) GetRole(ctx context.Context, userID string) permissions.Role {
	if role, ok := e.cache.Get(userID); ok {
		return role
	}

	role, _, err := e.store.GetRole(ctx, userID)
	if err != nil {
		// Treat a broken store like an absent assignment. Not cached, so
		// recovery is picked up on the next check.
		e.logger.WithError(err).Warn("role lookup failed, defaulting to user", "user_id", userID)
		e.metrics.RecordStoreFailure("rolestore", "get_role")
		return permissions.RoleUser
	}

	e.cache.Add(userID, role)
	return role
}

// HasPermission reports whether the user's effective role carries the
// capability
func (e *Evaluator) HasPermission(ctx context.Context, userID string, capability permissions.Capability) bool {
	allowed := permissions.HasCapability(e.GetRole(ctx, userID), capability)
	e.metrics.RecordPermissionCheck(string(capability), allowed)
	return allowed
}

// SetRole assigns a role to the target user. It is the sole path that
// writes role assignments and requires the acting user to hold
// manage_system_settings. Unrecognized role names are normalized to the
// user role before persisting.
func (e *Evaluator) SetRole(ctx context.Context, actorID, targetID string, role permissions.Role) error {
	role = permissions.ParseRole(string(role))

	if !e.HasPermission(ctx, actorID, permissions.CapabilityManageSystemSettings) {
		e.metrics.RecordRoleChange(string(role), "denied")
		e.auditor.Log(ctx, audit.NewEvent(audit.EventTypeRoleChange, audit.EventStatusDenied).
			WithActor(actorID).
			WithSubject(targetID).
			WithMetadata("requested_role", string(role)).
			WithMessage("role change denied: actor lacks manage_system_settings"))
		return ErrNotAuthorized
	}

	if err := e.store.SetRole(ctx, targetID, role); err != nil {
		e.metrics.RecordRoleChange(string(role), "failure")
		e.auditor.Log(ctx, audit.NewEvent(audit.EventTypeRoleChange, audit.EventStatusFailure).
			WithActor(actorID).
			WithSubject(targetID).
			WithMetadata("requested_role", string(role)).
			WithError(err))
		return err
	}

	e.cache.Remove(targetID)
	e.metrics.RecordRoleChange(string(role), "success")
	e.auditor.Log(ctx, audit.NewEvent(audit.EventTypeRoleChange, audit.EventStatusSuccess).
		WithActor(actorID).
		WithSubject(targetID).
		WithMetadata("new_role", string(role)).
		WithMessage("role changed to "+string(role)))
	e.logger.Info("role assigned", "actor_id", actorID, "target_id", targetID, "role", string(role))
	return nil
}

// CanAccessData decides whether requester may access owner's data. Owners
// always access their own data. Delegated access is read-only and requires
// the healthcare viewer role plus an effective grant from the owner.
func (e *Evaluator) CanAccessData(ctx context.Context, requesterID, ownerID string, writeAccess bool) bool {
	if requesterID == ownerID {
		e.metrics.RecordAccessCheck("self")
		return true
	}

	if writeAccess {
		e.metrics.RecordAccessCheck("delegated_write_denied")
		e.auditDenied(ctx, requesterID, ownerID, "delegated access is read-only")
		return false
	}

	if e.GetRole(ctx, requesterID) != permissions.RoleHealthcareViewer {
		e.metrics.RecordAccessCheck("role_denied")
		e.auditDenied(ctx, requesterID, ownerID, "requester is not a healthcare viewer")
		return false
	}

	grant, err := e.store.GetGrant(ctx, ownerID, requesterID)
	if err != nil {
		// Deny on a broken store; never fail open.
		e.logger.WithError(err).Warn("grant lookup failed, denying access",
			"owner_id", ownerID, "requester_id", requesterID)
		e.metrics.RecordStoreFailure("rolestore", "get_grant")
		e.metrics.RecordAccessCheck("store_error_denied")
		return false
	}

	if !grant.EffectiveAt(e.now()) {
		e.metrics.RecordAccessCheck("grant_denied")
		e.auditDenied(ctx, requesterID, ownerID, "no effective grant")
		return false
	}

	e.metrics.RecordAccessCheck("delegated_read")
	return true
}

// GrantHealthcareAccess creates a grant from owner to viewer. The viewer
// must already hold the healthcare viewer role. A nil expiry means the
// grant lasts until revoked.
func (e *Evaluator) GrantHealthcareAccess(ctx context.Context, ownerID, viewerID string, expiresAt *time.Time) error {
	if e.GetRole(ctx, viewerID) != permissions.RoleHealthcareViewer {
		e.metrics.RecordGrantOperation("grant", "denied")
		e.auditor.Log(ctx, audit.NewEvent(audit.EventTypeGrantCreate, audit.EventStatusDenied).
			WithActor(ownerID).
			WithSubject(viewerID).
			WithMessage("grant denied: grantee is not a healthcare viewer"))
		return ErrViewerRoleRequired
	}

	if err := e.store.PutGrant(ctx, ownerID, viewerID, expiresAt); err != nil {
		e.metrics.RecordGrantOperation("grant", "failure")
		e.auditor.Log(ctx, audit.NewEvent(audit.EventTypeGrantCreate, audit.EventStatusFailure).
			WithActor(ownerID).
			WithSubject(viewerID).
			WithError(err))
		return err
	}

	event := audit.NewEvent(audit.EventTypeGrantCreate, audit.EventStatusSuccess).
		WithActor(ownerID).
		WithSubject(viewerID).
		WithMessage("healthcare access granted")
	if expiresAt != nil {
		event = event.WithMetadata("expires_at", expiresAt.UTC().Format(time.RFC3339))
	}
	e.metrics.RecordGrantOperation("grant", "success")
	e.auditor.Log(ctx, event)
	e.logger.Info("healthcare access granted", "owner_id", ownerID, "viewer_id", viewerID)
	return nil
}

// RevokeHealthcareAccess removes the grant from owner to viewer. Idempotent:
// revoking an absent grant succeeds.
func (e *Evaluator) RevokeHealthcareAccess(ctx context.Context, ownerID, viewerID string) error {
	if err := e.store.DeleteGrant(ctx, ownerID, viewerID); err != nil {
		e.metrics.RecordGrantOperation("revoke", "failure")
		e.auditor.Log(ctx, audit.NewEvent(audit.EventTypeGrantRevoke, audit.EventStatusFailure).
			WithActor(ownerID).
			WithSubject(viewerID).
			WithError(err))
		return err
	}

	e.metrics.RecordGrantOperation("revoke", "success")
	e.auditor.Log(ctx, audit.NewEvent(audit.EventTypeGrantRevoke, audit.EventStatusSuccess).
		WithActor(ownerID).
		WithSubject(viewerID).
		WithMessage("healthcare access revoked"))
	e.logger.Info("healthcare access revoked", "owner_id", ownerID, "viewer_id", viewerID)
	return nil
}

// InvalidateRole drops the cached role for a user so the next check reads
// the store
func (e *Evaluator) InvalidateRole(userID string) {
	e.cache.Remove(userID)
}

func (e *Evaluator) auditDenied(ctx context.Context, requesterID, ownerID, reason string) {
	e.auditor.Log(ctx, audit.NewEvent(audit.EventTypeAccessDenied, audit.EventStatusDenied).
		WithActor(requesterID).
		WithSubject(ownerID).
		WithMessage(reason))
}
