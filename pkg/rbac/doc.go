// Package rbac evaluates role-based authorization decisions for the
// identity core.
//
// The package has two layers. RoleStore is a typed adapter over a kvstore
// backend: it persists role assignments and healthcare access grants under
// stable keys so callers never touch raw key strings. Evaluator sits on top
// and implements the decision logic:
//
//   - GetRole never fails: an absent assignment, an unrecognized value, or a
//     store error all resolve to the default user role.
//   - SetRole is the only code path that writes role assignments, and it is
//     gated on the acting user holding manage_system_settings.
//   - CanAccessData allows owners unconditional access to their own data.
//     Delegated access is read-only and requires both the healthcare_viewer
//     role and an active, unexpired grant from the data owner.
//   - Grants carry an optional expiry that is evaluated at read time; an
//     expired grant behaves exactly like an absent one but stays in the
//     store until revoked.
//
// Role lookups are cached in a small expiring LRU. SetRole invalidates the
// cached entry for the target user so privilege changes take effect on the
// next check.
//
// Usage:
//
//	store := rbac.NewRoleStore(kv)
//	eval := rbac.NewEvaluator(store, rbac.EvaluatorOptions{})
//	if eval.HasPermission(ctx, userID, permissions.CapabilityExportOwnData) {
//	    // allow the export
//	}
package rbac
