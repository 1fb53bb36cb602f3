// Package isolation is the single choke point for tenant-scoped data access.
// Every read gets the bound tenant injected into its filter and every write is
// stamped with it. Calls made outside tenant.Run fail with
// ErrMissingTenantContext and never fall back to an unscoped query.
package isolation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"academy-platform/internal/tenant"
)

// TenantColumn is the partition column every scoped table carries.
const TenantColumn = "tenant_id"

var (
	ErrMissingTenantContext = tenant.ErrMissingTenantContext
	ErrTenantConflict       = errors.New("filter names a different tenant than the bound context")
	ErrUnknownColumn        = errors.New("unknown column")
	ErrNotFound             = errors.New("record not found")
	ErrDuplicate            = errors.New("record already exists")
)

// Filter is an equality filter keyed by column name. A nil value matches NULL.
type Filter map[string]any

// Observer is notified about isolation events. Implementations must not block.
type Observer interface {
	TenantOverride(ctx context.Context, table, attempted, bound string)
	MissingTenantContext(ctx context.Context, table, op string)
}

type Enforcer struct {
	logger    *slog.Logger
	observers []Observer
}

type Option func(*Enforcer)

func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Enforcer) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

func NewEnforcer(opts ...Option) *Enforcer {
	e := &Enforcer{logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AddObserver registers o after construction, for observers that themselves
// depend on a store built with this enforcer. Call it before serving traffic.
func (e *Enforcer) AddObserver(o Observer) {
	if o != nil {
		e.observers = append(e.observers, o)
	}
}

// Tenant returns the bound tenant id for op on table, or ErrMissingTenantContext.
func (e *Enforcer) Tenant(ctx context.Context, table, op string) (string, error) {
	id, err := tenant.ID(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "tenant-scoped access without tenant context",
			"table", table,
			"op", op,
		)
		for _, o := range e.observers {
			o.MissingTenantContext(ctx, table, op)
		}
		return "", fmt.Errorf("%s %s: %w", op, table, ErrMissingTenantContext)
	}
	return id, nil
}

// ScopeFilter returns a copy of f that requires the bound tenant. A filter that
// already names the same tenant is left as is; a different tenant is an error.
func (e *Enforcer) ScopeFilter(ctx context.Context, table string, f Filter) (Filter, error) {
	bound, err := e.Tenant(ctx, table, "filter")
	if err != nil {
		return nil, err
	}
	return scopeFilter(f, bound)
}

func scopeFilter(f Filter, bound string) (Filter, error) {
	out := make(Filter, len(f)+1)
	maps.Copy(out, f)
	if v, ok := out[TenantColumn]; ok {
		s, isString := v.(string)
		if !isString || s != bound {
			return nil, ErrTenantConflict
		}
		return out, nil
	}
	out[TenantColumn] = bound
	return out, nil
}

// Stamp returns the tenant id a write must carry. An attempted tenant that
// differs from the bound one is overridden and reported.
func (e *Enforcer) Stamp(ctx context.Context, table, attempted string) (string, error) {
	bound, err := e.Tenant(ctx, table, "write")
	if err != nil {
		return "", err
	}
	if attempted != "" && attempted != bound {
		e.logger.WarnContext(ctx, "tenant override on write",
			"event", "security",
			"table", table,
			"attempted_tenant_id", attempted,
			"tenant_id", bound,
		)
		for _, o := range e.observers {
			o.TenantOverride(ctx, table, attempted, bound)
		}
	}
	return bound, nil
}
