package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"academy-platform/internal/isolation"
	"academy-platform/internal/session"

	"github.com/google/uuid"
)

// Service records audit events into the bound tenant's trail.
//
// IMPORTANT:
// - Every call needs a tenant context; there is no cross-tenant audit write.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo   Repository
	clock  func() time.Time
	logger *slog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now, logger: slog.Default()}
}

func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

var ErrInvalidEvent = errors.New("audit: invalid event")

const defaultListLimit = 100

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	_, err := s.repo.Insert(ctx, e)
	return err
}

// List returns the bound tenant's most recent events, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	return s.repo.Find(ctx, nil, isolation.OrderBy("created_at", true), isolation.Limit(limit))
}

// SessionEvent implements session.Auditor.
func (s *Service) SessionEvent(ctx context.Context, e session.AuditEvent) error {
	msg := e.Type
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", e.Type, e.Reason)
	}
	return s.Append(ctx, Event{
		TenantID:    e.TenantID,
		Type:        EventType(e.Type),
		ActorUserID: e.ActorUserID,
		ActorRole:   e.ActorRole,
		SubjectID:   e.SubjectID,
		SessionID:   e.SessionID,
		IPAddress:   e.IPAddress,
		Message:     msg,
	})
}

// TenantOverride implements isolation.Observer. It runs inside the bound
// tenant's scope, so the event lands in the victim tenant's trail.
func (s *Service) TenantOverride(ctx context.Context, table, attempted, bound string) {
	if table == eventSchema.Table {
		return
	}
	err := s.Append(ctx, Event{
		TenantID: bound,
		Type:     EventTypeTenantOverride,
		Message:  "write to " + table + " carried a foreign tenant_id",
		Metadata: fmt.Sprintf(`{"table":%q,"attempted_tenant_id":%q}`, table, attempted),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit append failed", "type", string(EventTypeTenantOverride), "err", err)
	}
}

// MissingTenantContext implements isolation.Observer. Without a tenant there
// is no trail to write to; the enforcer has already logged the violation.
func (s *Service) MissingTenantContext(context.Context, string, string) {}
