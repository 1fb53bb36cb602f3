package identity

import (
	"context"
	"testing"

	"academy-platform/internal/isolation"
	"academy-platform/internal/tenant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *Service {
	t.Helper()
	repo, err := NewMemoryRepository(isolation.NewEnforcer())
	require.NoError(t, err)
	return NewService(repo).WithCost(bcrypt.MinCost)
}

func in(t *testing.T, tenantID string, fn func(ctx context.Context)) {
	t.Helper()
	require.NoError(t, tenant.Run(context.Background(), tenant.Context{TenantID: tenantID}, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}))
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc := newService(t)

	in(t, "T1", func(ctx context.Context) {
		u, err := svc.CreateUser(ctx, CreateUserInput{Email: " Ada@Example.com ", Name: "Ada", Role: "owner", Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, "T1", u.TenantID)
		assert.Equal(t, "ada@example.com", u.Email)
		assert.NotEqual(t, "pw", u.PasswordHash)

		got, err := svc.Authenticate(ctx, "ADA@example.com", "pw")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", Role: "owner", Password: "x"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestAuthenticate_ScopedToTenant(t *testing.T) {
	svc := newService(t)
	in(t, "T1", func(ctx context.Context) {
		_, err := svc.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", Role: "owner", Password: "pw"})
		require.NoError(t, err)
	})

	in(t, "T2", func(ctx context.Context) {
		_, err := svc.Authenticate(ctx, "ada@example.com", "pw")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		// Same email may register separately in another academy.
		u, err := svc.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", Role: "student", Password: "pw2"})
		require.NoError(t, err)
		assert.Equal(t, "T2", u.TenantID)
	})
}

func TestAuthenticate_RequiresTenantContext(t *testing.T) {
	svc := newService(t)
	_, err := svc.Authenticate(context.Background(), "ada@example.com", "pw")
	assert.ErrorIs(t, err, tenant.ErrMissingTenantContext)
}
