package session

import (
	"errors"
	"time"
)

// Record is the durable row for one login. ID is the token's jti.
// Records are never hard-deleted here; retention pruning runs elsewhere.
type Record struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	TenantID     string       `json:"tenant_id"`
	Device       string       `json:"device"`
	IPAddress    string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActiveAt time.Time    `json:"last_active_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Revoked      bool         `json:"revoked"`
	RevokedAt    *time.Time   `json:"revoked_at,omitempty"`
	RevokeReason RevokeReason `json:"revoke_reason,omitempty"`
}

type RevokeReason string

const (
	ReasonLogout            RevokeReason = "logout"
	ReasonRemoteSignOut     RevokeReason = "remote_sign_out"
	ReasonSignOutEverywhere RevokeReason = "sign_out_everywhere"
	ReasonAdmin             RevokeReason = "admin"
	ReasonConcurrentLimit   RevokeReason = "concurrent_session_limit"
	ReasonIdleTimeout       RevokeReason = "idle_timeout"
)

// State is derived from a Record and the current time; it is never stored.
type State string

const (
	StateActive  State = "active"
	StateIdle    State = "idle"
	StateExpired State = "expired"
	StateRevoked State = "revoked"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrSessionRevoked   = errors.New("session revoked")
	ErrSessionExpired   = errors.New("session expired")
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrIdentityMismatch = errors.New("token identity does not match session")
	ErrTenantMismatch   = errors.New("token issued for another academy")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// ActiveQuery selects sessions for the "active sessions" view.
type ActiveQuery struct {
	UserID   string
	TenantID string
	// Sessions last active before IdleCutoff are excluded. A session active
	// exactly at the cutoff is still live, matching Tracker.IdleExpired.
	IdleCutoff time.Time
	// Sessions whose absolute expiry is at or before Now are excluded.
	Now time.Time
}

// View is a Record as shown to its owner.
type View struct {
	Record
	IsCurrent bool `json:"is_current"`
}
