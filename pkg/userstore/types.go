package userstore

import (
	"strings"
	"time"
)

// Notification categories with a per-user on/off preference
const (
	NotificationHydration = "hydration"
	NotificationWorkout   = "workout"
	NotificationMeal      = "meal"
	NotificationPeriod    = "period"
)

// NotificationCategories lists the fixed preference categories
func NotificationCategories() []string {
	return []string{NotificationHydration, NotificationWorkout, NotificationMeal, NotificationPeriod}
}

// DefaultNotificationPreferences returns the signup default: every category on
func DefaultNotificationPreferences() map[string]bool {
	prefs := make(map[string]bool, 4)
	for _, c := range NotificationCategories() {
		prefs[c] = true
	}
	return prefs
}

// UserRecord is the locally persisted mirror of a provider account
type UserRecord struct {
	// ID is the remote-provider user identifier, immutable primary key
	ID string `json:"id"`

	// Email is stored lower-cased and is unique within the store
	Email string `json:"email"`

	// Username preserves its original casing; uniqueness is case-insensitive
	Username string `json:"username"`

	FullName    string `json:"full_name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`

	NotificationPreferences map[string]bool `json:"notification_preferences"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize enforces the storage invariants on the record in place
func (u *UserRecord) Normalize() {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Username = strings.TrimSpace(u.Username)
	if u.NotificationPreferences == nil {
		u.NotificationPreferences = DefaultNotificationPreferences()
	}
}

// MatchesUsername reports whether the record's username matches the given
// one, ignoring case
func (u *UserRecord) MatchesUsername(username string) bool {
	return strings.EqualFold(u.Username, username)
}
