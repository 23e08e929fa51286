package accounts

import (
	"errors"

	"github.com/tracklet/tracklet/pkg/userstore"
)

// ErrUserNotFound is returned when an operation targets a user with no
// local record
var ErrUserNotFound = errors.New("user not found")

// ProfileUpdate is a partial update of the local record; nil fields are
// left unchanged and notification preferences merge per category
type ProfileUpdate struct {
	Username    *string
	FullName    *string
	Gender      *string
	DateOfBirth *string

	NotificationPreferences map[string]bool
}

func (u ProfileUpdate) apply(record *userstore.UserRecord) {
	if u.Username != nil {
		record.Username = *u.Username
	}
	if u.FullName != nil {
		record.FullName = *u.FullName
	}
	if u.Gender != nil {
		record.Gender = *u.Gender
	}
	if u.DateOfBirth != nil {
		record.DateOfBirth = *u.DateOfBirth
	}
	if len(u.NotificationPreferences) > 0 {
		if record.NotificationPreferences == nil {
			record.NotificationPreferences = userstore.DefaultNotificationPreferences()
		}
		for category, enabled := range u.NotificationPreferences {
			record.NotificationPreferences[category] = enabled
		}
	}
}
