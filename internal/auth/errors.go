package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// VerificationKind classifies why a token was rejected.
// Expired is routine; Malformed and SignatureInvalid indicate tampering or corruption.
type VerificationKind string

const (
	KindMalformed        VerificationKind = "malformed"
	KindSignatureInvalid VerificationKind = "signature_invalid"
	KindExpired          VerificationKind = "expired"
	KindClaimsInvalid    VerificationKind = "claims_invalid"
)

type VerificationError struct {
	Kind VerificationKind
	Err  error
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("token %s", e.Kind)
	}
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// Is matches on Kind so callers can compare against the exported sentinels.
func (e *VerificationError) Is(target error) bool {
	t, ok := target.(*VerificationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// SecurityRelevant reports whether the failure should be logged as a security event.
func (e *VerificationError) SecurityRelevant() bool {
	return e.Kind == KindMalformed || e.Kind == KindSignatureInvalid
}

var (
	ErrMalformed        = &VerificationError{Kind: KindMalformed}
	ErrSignatureInvalid = &VerificationError{Kind: KindSignatureInvalid}
	ErrExpired          = &VerificationError{Kind: KindExpired}
	ErrClaimsInvalid    = &VerificationError{Kind: KindClaimsInvalid}
)

// AsVerificationError extracts the typed failure, if any.
func AsVerificationError(err error) (*VerificationError, bool) {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func classify(err error) *VerificationError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &VerificationError{Kind: KindMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerificationError{Kind: KindSignatureInvalid, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &VerificationError{Kind: KindExpired, Err: err}
	default:
		return &VerificationError{Kind: KindClaimsInvalid, Err: err}
	}
}
