package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is stamped from the bound tenant context, never from the caller.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.
type Event struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	// Type indicates the category of the audit record.
	Type EventType `json:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty"`
	ActorRole   string `json:"actor_role,omitempty"`

	// SubjectID is the user the event is about, e.g. the owner of a revoked session.
	SubjectID string `json:"subject_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// IPAddress is internal-only and never rendered to tenant users.
	IPAddress string `json:"-"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeSessionCreated     EventType = "session_created"
	EventTypeSessionRevoked     EventType = "session_revoked"
	EventTypeSessionIdleExpired EventType = "session_idle_expired"
	EventTypeSignOutEverywhere  EventType = "sign_out_everywhere"
	EventTypeTenantOverride     EventType = "tenant_override"
)
