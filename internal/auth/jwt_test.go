package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"academy-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, mutate ...func(*config.AuthConfig)) *Manager {
	t.Helper()
	cfg := config.AuthConfig{
		JWTSecret:          "secret",
		JWTIssuer:          "academy",
		JWTAudience:        "academy-web",
		SessionMaxLifetime: 12 * time.Hour,
		ClockSkew:          30 * time.Second,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	return m
}

var baseTime = time.Unix(1700000000, 0).UTC()

func issueU1(t *testing.T, m *Manager) (string, Claims) {
	t.Helper()
	tok, claims, err := m.Issue(IssueRequest{
		UserID:   "U1",
		TenantID: "T1",
		Role:     "student",
		Name:     "Ada",
		Email:    "ada@example.com",
	}, baseTime)
	require.NoError(t, err)
	return tok, claims
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	tok, issued := issueU1(t, m)

	got, err := m.Verify(tok, baseTime.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, issued.Subject, got.Subject)
	assert.Equal(t, issued.ID, got.ID)
	assert.Equal(t, "T1", got.TenantID)
	assert.Equal(t, "student", got.Role)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, issued.ExpiresAt.Unix(), got.ExpiresAt.Unix())
	assert.Equal(t, issued.IssuedAt.Unix(), got.IssuedAt.Unix())
	assert.Equal(t, baseTime.Unix(), got.LastActivity.Unix())
	assert.Equal(t, baseTime.Add(12*time.Hour).Unix(), got.ExpiresAt.Unix())
}

func TestVerify_ExpiredAfterLifetimeAndLeeway(t *testing.T) {
	m := newTestManager(t)
	tok, _ := issueU1(t, m)

	// Inside the leeway window the token is still accepted.
	_, err := m.Verify(tok, baseTime.Add(12*time.Hour+10*time.Second))
	require.NoError(t, err)

	_, err = m.Verify(tok, baseTime.Add(12*time.Hour+31*time.Second))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpired)

	ve, ok := AsVerificationError(err)
	require.True(t, ok)
	assert.False(t, ve.SecurityRelevant())
}

func TestVerify_Malformed(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Verify("not-a-token", baseTime)
	assert.ErrorIs(t, err, ErrMalformed)

	ve, ok := AsVerificationError(err)
	require.True(t, ok)
	assert.True(t, ve.SecurityRelevant())
}

func TestVerify_SignatureInvalid(t *testing.T) {
	m := newTestManager(t)
	other := newTestManager(t, func(c *config.AuthConfig) { c.JWTSecret = "other-secret" })

	tok, _ := issueU1(t, other)
	_, err := m.Verify(tok, baseTime)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerify_TamperedPayloadRejected(t *testing.T) {
	m := newTestManager(t)
	tok, _ := issueU1(t, m)

	// Splice a payload naming another tenant under the original signature.
	forged, _, err := m.Issue(IssueRequest{UserID: "U1", TenantID: "T2", Role: "owner"}, baseTime)
	require.NoError(t, err)
	parts := strings.Split(tok, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	_, err = m.Verify(spliced, baseTime)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	m := newTestManager(t)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "U1",
			ID:        "jti",
			IssuedAt:  jwt.NewNumericDate(baseTime),
			ExpiresAt: jwt.NewNumericDate(baseTime.Add(time.Hour)),
		},
		TenantID: "T1",
		Role:     "owner",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(tok, baseTime)
	require.Error(t, err)
	ve, ok := AsVerificationError(err)
	require.True(t, ok)
	assert.True(t, ve.SecurityRelevant())
}

func TestVerify_WrongIssuerIsClaimsInvalid(t *testing.T) {
	m := newTestManager(t)
	other := newTestManager(t, func(c *config.AuthConfig) { c.JWTIssuer = "someone-else" })

	tok, _ := issueU1(t, other)
	_, err := m.Verify(tok, baseTime)
	assert.ErrorIs(t, err, ErrClaimsInvalid)
}

func TestVerify_MissingTenantIsClaimsInvalid(t *testing.T) {
	m := newTestManager(t)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "U1",
			ID:        "jti",
			Issuer:    "academy",
			Audience:  jwt.ClaimStrings{"academy-web"},
			IssuedAt:  jwt.NewNumericDate(baseTime),
			ExpiresAt: jwt.NewNumericDate(baseTime.Add(time.Hour)),
		},
		Role: "owner",
	}
	tok, err := m.sign(claims)
	require.NoError(t, err)

	_, err = m.Verify(tok, baseTime)
	assert.ErrorIs(t, err, ErrClaimsInvalid)
	assert.True(t, errors.Is(err, ErrTenantMissing))
}

func TestVerify_IssuedInFutureIsClaimsInvalid(t *testing.T) {
	m := newTestManager(t)
	tok, _ := issueU1(t, m)

	_, err := m.Verify(tok, baseTime.Add(-5*time.Minute))
	assert.ErrorIs(t, err, ErrClaimsInvalid)
}

func TestIssue_FreshJTIPerLogin(t *testing.T) {
	m := newTestManager(t)
	_, a := issueU1(t, m)
	_, b := issueU1(t, m)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestIssue_NormalizesAcademyID(t *testing.T) {
	m := newTestManager(t)

	_, claims, err := m.Issue(IssueRequest{UserID: "U1", AcademyID: "T9", Role: "owner"}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, "T9", claims.TenantID)

	_, claims, err = m.Issue(IssueRequest{UserID: "U1", TenantID: "T9", AcademyID: "T9", Role: "owner"}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, "T9", claims.TenantID)

	_, _, err = m.Issue(IssueRequest{UserID: "U1", TenantID: "T1", AcademyID: "T2", Role: "owner"}, baseTime)
	assert.ErrorIs(t, err, ErrTenantAmbiguous)

	_, _, err = m.Issue(IssueRequest{UserID: "U1", Role: "owner"}, baseTime)
	assert.ErrorIs(t, err, ErrTenantMissing)
}

func TestReissue_KeepsIdentityAndExpiry(t *testing.T) {
	m := newTestManager(t)
	_, issued := issueU1(t, m)

	later := baseTime.Add(20 * time.Minute)
	tok, re, err := m.Reissue(issued, later)
	require.NoError(t, err)

	got, err := m.Verify(tok, later)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)
	assert.Equal(t, issued.ExpiresAt.Unix(), got.ExpiresAt.Unix())
	assert.Equal(t, issued.IssuedAt.Unix(), got.IssuedAt.Unix())
	assert.Equal(t, later.Unix(), got.LastActivity.Unix())
	assert.Equal(t, later.Unix(), re.LastActivity.Unix())
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager(config.AuthConfig{SessionMaxLifetime: time.Hour})
	assert.Error(t, err)
}
