package session

import (
	"errors"
	"fmt"
)

// Code is the client-facing reason for a rejected session. It tells the
// client which message to show without exposing internal state.
type Code string

const (
	CodeExpired         Code = "expired"
	CodeRevoked         Code = "revoked"
	CodeConcurrentLimit Code = "concurrent_session_limit"
	CodeInvalidToken    Code = "invalid_token"
	CodeUnverifiable    Code = "session_unverifiable"
)

// AuthError is the typed result of a failed Authenticate call.
type AuthError struct {
	Code Code
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session rejected: %s", e.Code)
	}
	return fmt.Sprintf("session rejected: %s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func reject(code Code, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

// revokedCode maps a stored revocation reason to its client code.
func revokedCode(r RevokeReason) Code {
	switch r {
	case ReasonConcurrentLimit:
		return CodeConcurrentLimit
	case ReasonIdleTimeout:
		return CodeExpired
	default:
		return CodeRevoked
	}
}
