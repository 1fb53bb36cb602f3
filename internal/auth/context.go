package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxPrincipal ctxKey = iota
)

// Principal is the verified caller attached to a request context.
// The tenant binding lives in internal/tenant, not here.
type Principal struct {
	UserID    string
	SessionID string
	Role      string
	Name      string
	Email     string
}

func PrincipalFromClaims(c Claims) Principal {
	return Principal{
		UserID:    c.Subject,
		SessionID: c.ID,
		Role:      c.Role,
		Name:      c.Name,
		Email:     c.Email,
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

func PrincipalFrom(ctx context.Context) (Principal, error) {
	if p, ok := ctx.Value(ctxPrincipal).(Principal); ok && p.UserID != "" {
		return p, nil
	}
	return Principal{}, errors.New("principal not in context")
}

func UserID(ctx context.Context) (string, error) {
	p, err := PrincipalFrom(ctx)
	if err != nil {
		return "", errors.New("user_id not in context")
	}
	return p.UserID, nil
}

func Role(ctx context.Context) (string, error) {
	p, err := PrincipalFrom(ctx)
	if err != nil || p.Role == "" {
		return "", errors.New("role not in context")
	}
	return p.Role, nil
}

func SessionID(ctx context.Context) (string, error) {
	p, err := PrincipalFrom(ctx)
	if err != nil || p.SessionID == "" {
		return "", errors.New("session_id not in context")
	}
	return p.SessionID, nil
}
