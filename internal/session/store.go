package session

import (
	"context"
	"time"
)

// Store is the authoritative session registry.
//
// Concurrency contract:
//   - Touch is last-write-wins on LastActiveAt.
//   - Revoke is monotonic: a revoked session is never un-revoked, and a racing
//     Touch on a revoked session fails with ErrSessionRevoked.
//   - The first revocation reason is kept.
//
// Implementations report infrastructure failures wrapped in ErrStoreUnavailable
// so callers can apply the fail-open/fail-closed policy.
type Store interface {
	Create(ctx context.Context, rec Record) (string, error)
	Get(ctx context.Context, id string) (Record, error)
	// Touch fails with ErrNotFound when id does not belong to tenantID.
	Touch(ctx context.Context, id, tenantID string, at time.Time) error
	Revoke(ctx context.Context, id string, reason RevokeReason, at time.Time) error
	ListActive(ctx context.Context, q ActiveQuery) ([]Record, error)
	// IsRevoked fails with ErrNotFound for unknown ids.
	IsRevoked(ctx context.Context, id string) (bool, error)
}

func validateRecord(rec Record) error {
	if rec.ID == "" || rec.UserID == "" || rec.TenantID == "" {
		return ErrInvalidArgument
	}
	if rec.CreatedAt.IsZero() || rec.ExpiresAt.IsZero() {
		return ErrInvalidArgument
	}
	return nil
}

func activeFilter(rec Record, q ActiveQuery) bool {
	return !rec.Revoked &&
		rec.UserID == q.UserID &&
		rec.TenantID == q.TenantID &&
		!rec.LastActiveAt.Before(q.IdleCutoff) &&
		rec.ExpiresAt.After(q.Now)
}
