package audit

import (
	"encoding/json"
	"time"
)

// EventType categorizes an audit event
type EventType string

const (
	// Identity lifecycle events
	EventTypeSignup               EventType = "identity.signup"
	EventTypeSignupFailed         EventType = "identity.signup_failed"
	EventTypeLogin                EventType = "identity.login"
	EventTypeLoginFailed          EventType = "identity.login_failed"
	EventTypeLoginMFARequired     EventType = "identity.login_mfa_required"
	EventTypeLogout               EventType = "identity.logout"
	EventTypePasswordChange       EventType = "identity.password_change"
	EventTypePasswordResetRequest EventType = "identity.password_reset_request"
	EventTypeAccountDelete        EventType = "identity.account_delete"
	EventTypeProfileUpdate        EventType = "identity.profile_update"

	// Authorization events
	EventTypeRoleChange    EventType = "authz.role_change"
	EventTypeGrantCreate   EventType = "authz.grant_create"
	EventTypeGrantRevoke   EventType = "authz.grant_revoke"
	EventTypeAccessDenied  EventType = "authz.access_denied"
	EventTypeAccessGranted EventType = "authz.access_granted"
)

// EventStatus is the outcome of the audited operation
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit trail entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor and subject. ActorID is who performed the operation; SubjectID
	// is who it was performed on. They match for self-service operations.
	ActorID   string `json:"actor_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON serializes the event
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// Filter narrows audit trail queries
type Filter struct {
	StartTime *time.Time
	EndTime   *time.Time

	ActorID   string
	SubjectID string

	EventTypes []EventType
	Status     *EventStatus

	Limit  int
	Offset int
}

// ExportFormat selects the serialization for exported trails
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)
