package identity

import (
	"database/sql"
	"time"

	"academy-platform/internal/isolation"
)

// User is a member of one academy. Emails are unique per tenant only.
type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

var userSchema = isolation.Schema[User]{
	Table:   "users",
	Key:     "id",
	Columns: []string{"id", "tenant_id", "email", "name", "role", "password_hash", "created_at"},
	Values: func(u User) []any {
		return []any{u.ID, u.TenantID, u.Email, u.Name, u.Role, u.PasswordHash, u.CreatedAt}
	},
	Scan: func(s isolation.Scanner) (User, error) {
		var u User
		err := s.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt)
		return u, err
	},
	WithTenant: func(u User, tenantID string) User {
		u.TenantID = tenantID
		return u
	},
}

type Repository = *isolation.Store[User]

func NewMemoryRepository(enf *isolation.Enforcer) (Repository, error) {
	return isolation.NewMemory(userSchema, enf)
}

func NewPostgresRepository(db *sql.DB, enf *isolation.Enforcer) (Repository, error) {
	return isolation.NewPostgres(db, userSchema, enf)
}
