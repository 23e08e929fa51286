package permissions

// Capability represents a single permission token
type Capability string

const (
	CapabilityReadOwnData            Capability = "read_own_data"
	CapabilityWriteOwnData           Capability = "write_own_data"
	CapabilityDeleteOwnData          Capability = "delete_own_data"
	CapabilityExportOwnData          Capability = "export_own_data"
	CapabilityShareWithHealthcare    Capability = "share_with_healthcare"
	CapabilityReadSharedData         Capability = "read_shared_data"
	CapabilityViewAnonymizedAnalytics Capability = "view_anonymized_analytics"
	CapabilityManageSystemSettings   Capability = "manage_system_settings"
)

// Role represents a named capability bundle
type Role string

const (
	RoleUser             Role = "user"
	RoleAdmin            Role = "admin"
	RoleHealthcareViewer Role = "healthcare_viewer"
)

// AllRoles returns every role the catalog knows about
func AllRoles() []Role {
	return []Role{RoleUser, RoleAdmin, RoleHealthcareViewer}
}

// AllCapabilities returns every capability in the catalog
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityReadOwnData,
		CapabilityWriteOwnData,
		CapabilityDeleteOwnData,
		CapabilityExportOwnData,
		CapabilityShareWithHealthcare,
		CapabilityReadSharedData,
		CapabilityViewAnonymizedAnalytics,
		CapabilityManageSystemSettings,
	}
}

// roleCapabilities is the fixed role-to-capability mapping
var roleCapabilities = map[Role][]Capability{
	RoleUser: {
		CapabilityReadOwnData,
		CapabilityWriteOwnData,
		CapabilityDeleteOwnData,
		CapabilityExportOwnData,
		CapabilityShareWithHealthcare,
	},
	RoleHealthcareViewer: {
		CapabilityReadSharedData,
	},
	RoleAdmin: {
		CapabilityReadOwnData,
		CapabilityWriteOwnData,
		CapabilityDeleteOwnData,
		CapabilityExportOwnData,
		CapabilityViewAnonymizedAnalytics,
		CapabilityManageSystemSettings,
	},
}

// ParseRole parses a stored role string. Unknown or unparseable values fall
// back to RoleUser so a corrupted role assignment can never widen access
// beyond the standard user set.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleHealthcareViewer:
		return Role(s)
	default:
		return RoleUser
	}
}

// IsValid reports whether the role is one of the catalog roles
func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// CapabilitySet returns the capability set for a role. Unknown roles resolve
// to the RoleUser set.
func CapabilitySet(role Role) []Capability {
	caps, ok := roleCapabilities[role]
	if !ok {
		caps = roleCapabilities[RoleUser]
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// HasCapability reports whether the role's capability set includes the
// requested capability
func HasCapability(role Role, capability Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		caps = roleCapabilities[RoleUser]
	}
	for _, c := range caps {
		if c == capability {
			return true
		}
	}
	return false
}
