package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the only supported JWT claims shape for this service.
// Subject carries the user id and ID carries the session id (jti).
// TenantID and Subject are immutable for the life of one token.
type Claims struct {
	jwt.RegisteredClaims

	TenantID     string           `json:"tenant_id"`
	Role         string           `json:"role"`
	Name         string           `json:"name,omitempty"`
	Email        string           `json:"email,omitempty"`
	LastActivity *jwt.NumericDate `json:"last_activity,omitempty"`
}

func (c Claims) UserID() string    { return c.Subject }
func (c Claims) SessionID() string { return c.ID }

// IssueRequest is the input to Manager.Issue.
// AcademyID is accepted as an alias of TenantID from older login flows;
// it is folded into TenantID before signing and never appears on the wire.
type IssueRequest struct {
	UserID    string
	TenantID  string
	AcademyID string
	Role      string
	Name      string
	Email     string
}

var (
	ErrTenantAmbiguous = errors.New("tenant_id and academy_id disagree")
	ErrTenantMissing   = errors.New("tenant_id missing")
	ErrSubjectMissing  = errors.New("user_id missing")
	ErrRoleMissing     = errors.New("role missing")
)

// CanonicalTenant resolves the single tenant identity for an issuance request.
func (r IssueRequest) CanonicalTenant() (string, error) {
	t := strings.TrimSpace(r.TenantID)
	a := strings.TrimSpace(r.AcademyID)
	switch {
	case t != "" && a != "" && t != a:
		return "", ErrTenantAmbiguous
	case t != "":
		return t, nil
	case a != "":
		return a, nil
	default:
		return "", ErrTenantMissing
	}
}

func (r IssueRequest) validate() (string, error) {
	tenantID, err := r.CanonicalTenant()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(r.UserID) == "" {
		return "", ErrSubjectMissing
	}
	if strings.TrimSpace(r.Role) == "" {
		return "", ErrRoleMissing
	}
	return tenantID, nil
}
