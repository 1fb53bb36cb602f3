package audit

import (
	"database/sql"

	"academy-platform/internal/isolation"
)

// Repository is the persistence contract for audit events. It is a
// tenant-scoped store; there is no Update or Delete path in this package.
type Repository = *isolation.Store[Event]

var eventSchema = isolation.Schema[Event]{
	Table: "audit_events",
	Key:   "id",
	Columns: []string{
		"id", "tenant_id", "type", "actor_user_id", "actor_role",
		"subject_id", "session_id", "ip_address", "message", "metadata", "created_at",
	},
	Values: func(e Event) []any {
		return []any{
			e.ID, e.TenantID, string(e.Type), e.ActorUserID, e.ActorRole,
			e.SubjectID, e.SessionID, e.IPAddress, e.Message, e.Metadata, e.CreatedAt,
		}
	},
	Scan: func(s isolation.Scanner) (Event, error) {
		var e Event
		var typ string
		err := s.Scan(
			&e.ID, &e.TenantID, &typ, &e.ActorUserID, &e.ActorRole,
			&e.SubjectID, &e.SessionID, &e.IPAddress, &e.Message, &e.Metadata, &e.CreatedAt,
		)
		e.Type = EventType(typ)
		return e, err
	},
	WithTenant: func(e Event, tenantID string) Event {
		e.TenantID = tenantID
		return e
	},
}

func NewMemoryRepository(enf *isolation.Enforcer) (Repository, error) {
	return isolation.NewMemory(eventSchema, enf)
}

func NewPostgresRepository(db *sql.DB, enf *isolation.Enforcer) (Repository, error) {
	return isolation.NewPostgres(db, eventSchema, enf)
}
