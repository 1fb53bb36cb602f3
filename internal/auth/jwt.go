package auth

import (
	"errors"
	"fmt"
	"time"

	"academy-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Manager signs and verifies session tokens. It holds no mutable state.
type Manager struct {
	secret      []byte
	issuer      string
	audience    string
	maxLifetime time.Duration
	leeway      time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.SessionMaxLifetime <= 0 {
		return nil, errors.New("SESSION_MAX_LIFETIME must be positive")
	}

	leeway := cfg.ClockSkew
	if leeway <= 0 {
		leeway = 30 * time.Second
	}

	return &Manager{
		secret:      []byte(cfg.JWTSecret),
		issuer:      cfg.JWTIssuer,
		audience:    cfg.JWTAudience,
		maxLifetime: cfg.SessionMaxLifetime,
		leeway:      leeway,
	}, nil
}

func (m *Manager) MaxLifetime() time.Duration { return m.maxLifetime }

/* ===================== ISSUE TOKENS ===================== */

// Issue signs a token for a fresh login. Every call mints a new jti.
// Expiry is fixed at issuance and never extended by activity.
func (m *Manager) Issue(req IssueRequest, now time.Time) (string, Claims, error) {
	tenantID, err := req.validate()
	if err != nil {
		return "", Claims{}, err
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.UserID,
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxLifetime)),
			ID:        uuid.NewString(),
		},
		TenantID:     tenantID,
		Role:         req.Role,
		Name:         req.Name,
		Email:        req.Email,
		LastActivity: jwt.NewNumericDate(now),
	}

	tok, err := m.sign(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return tok, claims, nil
}

// Reissue re-signs verified claims with a refreshed last_activity.
// jti, iat, exp and identity are carried over unchanged.
func (m *Manager) Reissue(claims Claims, now time.Time) (string, Claims, error) {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return "", Claims{}, errors.New("reissue requires verified claims")
	}
	claims.LastActivity = jwt.NewNumericDate(now)
	tok, err := m.sign(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return tok, claims, nil
}

/* ===================== VERIFY TOKEN ===================== */

// Verify checks signature, expiry and issuer/audience. Failures are returned
// as *VerificationError and are never worth retrying.
func (m *Manager) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(m.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}

	// Custom claims validation
	switch {
	case claims.ID == "":
		return Claims{}, &VerificationError{Kind: KindClaimsInvalid, Err: errors.New("jti missing")}
	case claims.Subject == "":
		return Claims{}, &VerificationError{Kind: KindClaimsInvalid, Err: ErrSubjectMissing}
	case claims.TenantID == "":
		return Claims{}, &VerificationError{Kind: KindClaimsInvalid, Err: ErrTenantMissing}
	case claims.Role == "":
		return Claims{}, &VerificationError{Kind: KindClaimsInvalid, Err: ErrRoleMissing}
	}

	return claims, nil
}

/* ===================== INTERNAL ===================== */

func (m *Manager) sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
