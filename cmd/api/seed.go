package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"academy-platform/internal/identity"
	"academy-platform/internal/rbac"
	"academy-platform/internal/tenant"

	"github.com/google/uuid"
)

const (
	demoSubdomain = "demo"
	demoEmail     = "owner@demo.local"
)

// seedDemo registers one academy and its owner so the in-memory build can be
// exercised with curl. DEMO_PASSWORD overrides the default password.
func seedDemo(ctx context.Context, a app, baseDomain string, log *slog.Logger) error {
	if a.tenants == nil {
		return errors.New("demo seed requires the in-memory registry")
	}
	pw := os.Getenv("DEMO_PASSWORD")
	if pw == "" {
		pw = "demo-password"
	}

	t := tenant.Tenant{ID: uuid.NewString(), Subdomain: demoSubdomain, Name: "Demo Academy", CreatedAt: time.Now().UTC()}
	if err := a.tenants.Add(t); err != nil {
		return err
	}
	err := tenant.Run(ctx, tenant.Context{TenantID: t.ID, Subdomain: t.Subdomain}, func(ctx context.Context) error {
		_, err := a.users.CreateUser(ctx, identity.CreateUserInput{
			Email:    demoEmail,
			Name:     "Demo Owner",
			Role:     rbac.RoleOwner,
			Password: pw,
		})
		return err
	})
	if err != nil {
		return err
	}
	log.Info("demo academy seeded", "tenant_id", t.ID, "host", demoSubdomain+"."+baseDomain, "email", demoEmail)
	return nil
}
