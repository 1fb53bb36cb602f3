package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

var ErrUnknownTenant = errors.New("unknown tenant")

// Tenant is one academy.
type Tenant struct {
	ID        string
	Subdomain string
	Name      string
	CreatedAt time.Time
}

// Registry resolves academy subdomains for pre-authentication routing.
// The tenants table is the tenant directory itself, so it is not tenant-scoped.
type Registry interface {
	Resolve(ctx context.Context, subdomain string) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
}

type MemoryRegistry struct {
	mu          sync.RWMutex
	byID        map[string]Tenant
	bySubdomain map[string]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID:        make(map[string]Tenant),
		bySubdomain: make(map[string]string),
	}
}

func (r *MemoryRegistry) Add(t Tenant) error {
	if t.ID == "" || t.Subdomain == "" {
		return errors.New("tenant id and subdomain are required")
	}
	sub := normalizeSubdomain(t.Subdomain)
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.bySubdomain[sub]; ok && owner != t.ID {
		return fmt.Errorf("subdomain %q already taken", sub)
	}
	t.Subdomain = sub
	r.byID[t.ID] = t
	r.bySubdomain[sub] = t.ID
	return nil
}

func (r *MemoryRegistry) Resolve(ctx context.Context, subdomain string) (Tenant, error) {
	if err := ctx.Err(); err != nil {
		return Tenant{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySubdomain[normalizeSubdomain(subdomain)]
	if !ok {
		return Tenant{}, ErrUnknownTenant
	}
	return r.byID[id], nil
}

func (r *MemoryRegistry) Get(ctx context.Context, id string) (Tenant, error) {
	if err := ctx.Err(); err != nil {
		return Tenant{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return Tenant{}, ErrUnknownTenant
	}
	return t, nil
}

type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Resolve(ctx context.Context, subdomain string) (Tenant, error) {
	return r.one(ctx, `SELECT id, subdomain, name, created_at FROM tenants WHERE subdomain = $1`, normalizeSubdomain(subdomain))
}

func (r *PostgresRegistry) Get(ctx context.Context, id string) (Tenant, error) {
	return r.one(ctx, `SELECT id, subdomain, name, created_at FROM tenants WHERE id = $1`, id)
}

func (r *PostgresRegistry) one(ctx context.Context, q string, arg string) (Tenant, error) {
	var t Tenant
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&t.ID, &t.Subdomain, &t.Name, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrUnknownTenant
		}
		return Tenant{}, err
	}
	return t, nil
}

// Create inserts a tenant. Used by seeding and provisioning.
func (r *PostgresRegistry) Create(ctx context.Context, t Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, subdomain, name, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, normalizeSubdomain(t.Subdomain), t.Name, t.CreatedAt,
	)
	return err
}

func normalizeSubdomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SubdomainFromHost extracts the academy label from host under baseDomain.
// "acme.academy.example.com:8080" with base "academy.example.com" yields "acme".
func SubdomainFromHost(host, baseDomain string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	baseDomain = strings.ToLower(strings.TrimSpace(baseDomain))
	if baseDomain == "" || host == baseDomain {
		return "", false
	}
	suffix := "." + baseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return "", false
	}
	return sub, true
}
