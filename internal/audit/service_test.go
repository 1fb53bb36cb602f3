package audit

import (
	"context"
	"testing"
	"time"

	"academy-platform/internal/isolation"
	"academy-platform/internal/session"
	"academy-platform/internal/tenant"
)

type testRecord struct {
	ID       string
	TenantID string
}

func newTestService(t *testing.T) (*Service, *isolation.Enforcer) {
	t.Helper()
	enf := isolation.NewEnforcer()
	repo, err := NewMemoryRepository(enf)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	svc := NewService(repo)
	enf.AddObserver(svc)
	return svc, enf
}

func within(t *testing.T, tenantID string, fn func(ctx context.Context)) {
	t.Helper()
	err := tenant.Run(context.Background(), tenant.Context{TenantID: tenantID}, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestService_AppendRequiresTenantAndType(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.Append(context.Background(), Event{Type: EventTypeSessionCreated}); err == nil {
		t.Fatalf("expected missing tenant context error")
	}
	within(t, "T1", func(ctx context.Context) {
		if err := svc.Append(ctx, Event{}); err != ErrInvalidEvent {
			t.Fatalf("expected ErrInvalidEvent, got %v", err)
		}
	})
}

func TestService_EventsStayInTheirTenant(t *testing.T) {
	svc, _ := newTestService(t)

	within(t, "T1", func(ctx context.Context) {
		if err := svc.SessionEvent(ctx, session.AuditEvent{Type: session.AuditSessionCreated, TenantID: "T1", SessionID: "s1", IPAddress: "1.2.3.4"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	})
	within(t, "T2", func(ctx context.Context) {
		// A caller-supplied tenant is overridden by the bound one.
		if err := svc.Append(ctx, Event{TenantID: "T1", Type: EventTypeSessionRevoked}); err != nil {
			t.Fatalf("append: %v", err)
		}
	})

	within(t, "T1", func(ctx context.Context) {
		evs, err := svc.List(ctx, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(evs) != 1 {
			t.Fatalf("expected 1 event for T1, got %d", len(evs))
		}
		if evs[0].IPAddress != "1.2.3.4" || evs[0].SessionID != "s1" {
			t.Fatalf("expected ip and session captured: %+v", evs[0])
		}
		if evs[0].Type != EventTypeSessionCreated {
			t.Fatalf("expected session_created, got %s", evs[0].Type)
		}
	})
	within(t, "T2", func(ctx context.Context) {
		evs, err := svc.List(ctx, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(evs) != 1 || evs[0].TenantID != "T2" {
			t.Fatalf("expected T1-tagged write stamped to T2, got %+v", evs)
		}
	})
}

func TestService_RecordsTenantOverrideFromOtherStores(t *testing.T) {
	svc, enf := newTestService(t)

	records, err := isolation.NewMemory(isolation.Schema[testRecord]{
		Table:   "courses",
		Key:     "id",
		Columns: []string{"id", "tenant_id"},
		Values:  func(r testRecord) []any { return []any{r.ID, r.TenantID} },
		Scan: func(s isolation.Scanner) (testRecord, error) {
			var r testRecord
			err := s.Scan(&r.ID, &r.TenantID)
			return r, err
		},
		WithTenant: func(r testRecord, id string) testRecord {
			r.TenantID = id
			return r
		},
	}, enf)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	within(t, "T1", func(ctx context.Context) {
		if _, err := records.Insert(ctx, testRecord{ID: "c1", TenantID: "T2"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
		evs, err := svc.List(ctx, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(evs) != 1 || evs[0].Type != EventTypeTenantOverride {
			t.Fatalf("expected tenant_override event, got %+v", evs)
		}
	})
}

func TestService_ListNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Unix(1700000000, 0).UTC()

	within(t, "T1", func(ctx context.Context) {
		for i := 0; i < 3; i++ {
			if err := svc.Append(ctx, Event{Type: EventTypeSessionCreated, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		evs, err := svc.List(ctx, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(evs) != 2 || !evs[0].CreatedAt.Equal(base.Add(2*time.Minute)) {
			t.Fatalf("unexpected order: %+v", evs)
		}
	})
}
