package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/tracklet/tracklet/pkg/kvstore"
	"github.com/tracklet/tracklet/pkg/permissions"
)

// Grant is a healthcare viewer's delegated access to one owner's data.
// ExpiresAt is nil for grants that last until revoked.
type Grant struct {
	Active    bool
	ExpiresAt *time.Time
}

// EffectiveAt reports whether the grant permits access at the given instant
func (g *Grant) EffectiveAt(t time.Time) bool {
	if g == nil || !g.Active {
		return false
	}
	if g.ExpiresAt != nil && !t.Before(*g.ExpiresAt) {
		return false
	}
	return true
}

// RoleStore persists role assignments and access grants on a kvstore
// backend. It owns the key layout; callers work with user ids only.
type RoleStore struct {
	kv kvstore.Store
}

// NewRoleStore creates a role store over the given backend
func NewRoleStore(kv kvstore.Store) *RoleStore {
	return &RoleStore{kv: kv}
}

func roleKey(userID string) string {
	return "rbac:role:" + userID
}

func grantActiveKey(ownerID, viewerID string) string {
	return fmt.Sprintf("rbac:grant:%s:%s:active", ownerID, viewerID)
}

func grantExpiryKey(ownerID, viewerID string) string {
	return fmt.Sprintf("rbac:grant:%s:%s:expiry", ownerID, viewerID)
}

// GetRole reads the stored role assignment. The second return reports
// whether an assignment exists; unrecognized stored values parse fail-safe
// to the user role.
func (s *RoleStore) GetRole(ctx context.Context, userID string) (permissions.Role, bool, error) {
	value, found, err := s.kv.GetString(ctx, roleKey(userID))
	if err != nil {
		return permissions.RoleUser, false, fmt.Errorf("failed to read role for %s: %w", userID, err)
	}
	if !found {
		return permissions.RoleUser, false, nil
	}
	return permissions.ParseRole(value), true, nil
}

// SetRole persists a role assignment
func (s *RoleStore) SetRole(ctx context.Context, userID string, role permissions.Role) error {
	if err := s.kv.SetString(ctx, roleKey(userID), string(role)); err != nil {
		return fmt.Errorf("failed to persist role for %s: %w", userID, err)
	}
	return nil
}

// GetGrant reads the grant for the (owner, viewer) pair. Returns nil when
// no grant exists.
func (s *RoleStore) GetGrant(ctx context.Context, ownerID, viewerID string) (*Grant, error) {
	active, found, err := s.kv.GetBool(ctx, grantActiveKey(ownerID, viewerID))
	if err != nil {
		return nil, fmt.Errorf("failed to read grant %s->%s: %w", ownerID, viewerID, err)
	}
	if !found {
		return nil, nil
	}

	grant := &Grant{Active: active}

	expiry, found, err := s.kv.GetTime(ctx, grantExpiryKey(ownerID, viewerID))
	if err != nil {
		return nil, fmt.Errorf("failed to read grant expiry %s->%s: %w", ownerID, viewerID, err)
	}
	if found {
		grant.ExpiresAt = &expiry
	}
	return grant, nil
}

// PutGrant persists an active grant, with the expiry only when provided
func (s *RoleStore) PutGrant(ctx context.Context, ownerID, viewerID string, expiresAt *time.Time) error {
	if err := s.kv.SetBool(ctx, grantActiveKey(ownerID, viewerID), true); err != nil {
		return fmt.Errorf("failed to persist grant %s->%s: %w", ownerID, viewerID, err)
	}
	if expiresAt != nil {
		if err := s.kv.SetTime(ctx, grantExpiryKey(ownerID, viewerID), *expiresAt); err != nil {
			return fmt.Errorf("failed to persist grant expiry %s->%s: %w", ownerID, viewerID, err)
		}
	} else {
		// A re-grant without expiry replaces any earlier expiry.
		if err := s.kv.Delete(ctx, grantExpiryKey(ownerID, viewerID)); err != nil {
			return fmt.Errorf("failed to clear grant expiry %s->%s: %w", ownerID, viewerID, err)
		}
	}
	return nil
}

// DeleteGrant removes both the active flag and the expiry. Safe to call
// when no grant exists.
func (s *RoleStore) DeleteGrant(ctx context.Context, ownerID, viewerID string) error {
	if err := s.kv.Delete(ctx, grantActiveKey(ownerID, viewerID)); err != nil {
		return fmt.Errorf("failed to delete grant %s->%s: %w", ownerID, viewerID, err)
	}
	if err := s.kv.Delete(ctx, grantExpiryKey(ownerID, viewerID)); err != nil {
		return fmt.Errorf("failed to delete grant expiry %s->%s: %w", ownerID, viewerID, err)
	}
	return nil
}
