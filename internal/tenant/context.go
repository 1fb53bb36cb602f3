// Package tenant carries the active tenant through a request's call chain.
//
// The binding lives on context.Context, so it follows the request across
// goroutines and blocking calls and disappears when the request returns.
// There is no package-level "current tenant".
package tenant

import (
	"context"
	"errors"
	"strings"
)

// Context is the request-scoped tenant identity.
type Context struct {
	TenantID  string
	Subdomain string
}

type ctxKey struct{}

var (
	// ErrMissingTenantContext means tenant-scoped code ran outside Run.
	// It is a programming error and must surface as a 500, never be defaulted.
	ErrMissingTenantContext = errors.New("tenant context missing")
	ErrEmptyTenant          = errors.New("tenant_id is empty")
)

// Run executes fn with tc bound to the context passed to fn. A nested Run
// shadows the outer binding for the duration of fn only.
func Run(ctx context.Context, tc Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tc.TenantID = strings.TrimSpace(tc.TenantID)
	if tc.TenantID == "" {
		return ErrEmptyTenant
	}
	return fn(context.WithValue(ctx, ctxKey{}, tc))
}

// RunValue is Run for functions that produce a result.
func RunValue[T any](ctx context.Context, tc Context, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Run(ctx, tc, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

// Current returns the bound tenant or ErrMissingTenantContext.
func Current(ctx context.Context) (Context, error) {
	if ctx == nil {
		return Context{}, ErrMissingTenantContext
	}
	tc, ok := ctx.Value(ctxKey{}).(Context)
	if !ok || tc.TenantID == "" {
		return Context{}, ErrMissingTenantContext
	}
	return tc, nil
}

// ID is shorthand for Current(ctx).TenantID.
func ID(ctx context.Context) (string, error) {
	tc, err := Current(ctx)
	if err != nil {
		return "", err
	}
	return tc.TenantID, nil
}
