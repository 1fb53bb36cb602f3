package isolation

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "academy-platform/internal/isolation"

// backend executes already-scoped operations. Backends are unexported so the
// only path to storage is through Store.
type backend[T any] interface {
	find(ctx context.Context, f Filter, opts FindOptions) ([]T, error)
	insert(ctx context.Context, rec T) error
	update(ctx context.Context, key any, tenantID string, rec T) error
	delete(ctx context.Context, f Filter) (int64, error)
}

// Store is a tenant-scoped collection of T.
type Store[T any] struct {
	schema Schema[T]
	enf    *Enforcer
	b      backend[T]
	tracer trace.Tracer
}

func newStore[T any](schema Schema[T], enf *Enforcer, b backend[T]) (*Store[T], error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	if enf == nil {
		enf = NewEnforcer()
	}
	return &Store[T]{schema: schema, enf: enf, b: b, tracer: otel.Tracer(tracerName)}, nil
}

// NewMemory returns a Store backed by process memory. For tests and local runs.
func NewMemory[T any](schema Schema[T], enf *Enforcer) (*Store[T], error) {
	return newStore(schema, enf, newMemoryBackend(schema))
}

// NewPostgres returns a Store backed by a Postgres table.
func NewPostgres[T any](db *sql.DB, schema Schema[T], enf *Enforcer) (*Store[T], error) {
	if db == nil {
		return nil, fmt.Errorf("isolation: nil db for %s", schema.Table)
	}
	return newStore(schema, enf, &postgresBackend[T]{db: db, schema: schema})
}

func (s *Store[T]) Table() string { return s.schema.Table }

func (s *Store[T]) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "isolation."+op, trace.WithAttributes(
		attribute.String("db.table", s.schema.Table),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Find returns records matching f within the bound tenant.
func (s *Store[T]) Find(ctx context.Context, f Filter, opts ...FindOption) (out []T, err error) {
	ctx, span := s.start(ctx, "find")
	defer func() { endSpan(span, err) }()

	bound, err := s.enf.Tenant(ctx, s.schema.Table, "find")
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.id", bound))
	if err := s.schema.checkFilter(f); err != nil {
		return nil, err
	}
	scoped, err := scopeFilter(f, bound)
	if err != nil {
		return nil, err
	}

	var fo FindOptions
	for _, o := range opts {
		o(&fo)
	}
	if fo.Order != nil && !s.schema.hasColumn(fo.Order.Column) {
		return nil, fmt.Errorf("%s.%s: %w", s.schema.Table, fo.Order.Column, ErrUnknownColumn)
	}
	return s.b.find(ctx, scoped, fo)
}

// Get returns the record with the given key within the bound tenant.
// A key owned by another tenant reports ErrNotFound.
func (s *Store[T]) Get(ctx context.Context, key any) (T, error) {
	var zero T
	rows, err := s.Find(ctx, Filter{s.schema.Key: key}, Limit(1))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, ErrNotFound
	}
	return rows[0], nil
}

// Insert stamps rec with the bound tenant and persists it.
func (s *Store[T]) Insert(ctx context.Context, rec T) (out T, err error) {
	ctx, span := s.start(ctx, "insert")
	defer func() { endSpan(span, err) }()

	var zero T
	bound, err := s.enf.Stamp(ctx, s.schema.Table, s.tenantOf(rec))
	if err != nil {
		return zero, err
	}
	span.SetAttributes(attribute.String("tenant.id", bound))
	rec = s.schema.WithTenant(rec, bound)
	if err := s.b.insert(ctx, rec); err != nil {
		return zero, err
	}
	return rec, nil
}

// Update replaces the record with rec's key within the bound tenant.
// The stored tenant never changes.
func (s *Store[T]) Update(ctx context.Context, rec T) (out T, err error) {
	ctx, span := s.start(ctx, "update")
	defer func() { endSpan(span, err) }()

	var zero T
	bound, err := s.enf.Stamp(ctx, s.schema.Table, s.tenantOf(rec))
	if err != nil {
		return zero, err
	}
	span.SetAttributes(attribute.String("tenant.id", bound))
	rec = s.schema.WithTenant(rec, bound)
	if err := s.b.update(ctx, s.schema.row(rec)[s.schema.Key], bound, rec); err != nil {
		return zero, err
	}
	return rec, nil
}

// Delete removes records matching f within the bound tenant.
func (s *Store[T]) Delete(ctx context.Context, f Filter) (n int64, err error) {
	ctx, span := s.start(ctx, "delete")
	defer func() { endSpan(span, err) }()

	bound, err := s.enf.Tenant(ctx, s.schema.Table, "delete")
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.String("tenant.id", bound))
	if err := s.schema.checkFilter(f); err != nil {
		return 0, err
	}
	scoped, err := scopeFilter(f, bound)
	if err != nil {
		return 0, err
	}
	return s.b.delete(ctx, scoped)
}

func (s *Store[T]) tenantOf(rec T) string {
	v, _ := s.schema.row(rec)[TenantColumn].(string)
	return v
}
