package audit

import "time"

// Event is an immutable, append-only record of a session transition.
//
// Invariants:
// - Events are never updated or deleted.
// - An event names its actor by user id or, for failed logins, by the email tried.
// - Recording is best-effort; session flows never block on audit failures.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OrganizationID string    `json:"organization_id,omitempty"`

	ActorUserID string `json:"actor_user_id,omitempty"`
	ActorEmail  string `json:"actor_email,omitempty"`

	// IPAddress is the resolved client IP when available.
	IPAddress string `json:"ip_address,omitempty"`
	TabID     string `json:"tab_id,omitempty"`

	// FromOrganizationID is set on switches.
	FromOrganizationID string `json:"from_organization_id,omitempty"`

	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeLogin              EventType = "login"
	EventTypeLoginFailed        EventType = "login_failed"
	EventTypeLogout             EventType = "logout"
	EventTypeOrganizationSwitch EventType = "organization_switch"
	EventTypeSwitchFailed       EventType = "organization_switch_failed"
	EventTypeCredentialRejected EventType = "credential_rejected"
)
