package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"academy-platform/pkg/utils"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		Store: StoreConfig{Driver: StoreDriverPostgres},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "academy"},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	c.Auth.JWTIssuer = "academy"
	c.Auth.JWTAudience = "academy-web"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.SessionMaxLifetime != 12*time.Hour {
		t.Fatalf("expected 12h max lifetime, got %s", c.Auth.SessionMaxLifetime)
	}
	if c.Session.IdleTimeout != 30*time.Minute || c.Session.TouchInterval != time.Minute {
		t.Fatalf("unexpected session defaults: %+v", c.Session)
	}
	if c.Session.CookieName != "session_token" {
		t.Fatalf("expected default cookie name, got %q", c.Session.CookieName)
	}
}

func TestValidate_MemoryDriverSkipsDB(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "dev", Port: 8080},
		Store: StoreConfig{Driver: StoreDriverMemory},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_MemoryDriverRejectedInProduction(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "production", Port: 8080},
		Store: StoreConfig{Driver: StoreDriverMemory},
		Auth:  AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef", JWTIssuer: "i", JWTAudience: "a"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for memory driver in production")
	}
}

func TestValidate_IdleTimeoutMustBeBelowLifetime(t *testing.T) {
	c := validLocal()
	c.Auth.SessionMaxLifetime = time.Hour
	c.Session.IdleTimeout = 2 * time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when idle timeout exceeds max lifetime")
	}
}

func TestPostgresURL(t *testing.T) {
	c := validLocal()
	c.DB.SSLMode = "require"
	got := c.PostgresURL()
	want := "postgres://postgres:x@localhost:5432/academy?sslmode=require"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLoad_ReadsPoolSettings(t *testing.T) {
	chdir(t, t.TempDir())
	for k, v := range map[string]string{
		"APP_ENV":               "local",
		"APP_PORT":              "8080",
		"STORE_DRIVER":          "postgres",
		"DB_HOST":               "localhost",
		"DB_PORT":               "5432",
		"DB_USER":               "postgres",
		"DB_NAME":               "academy",
		"JWT_SECRET":            "secret",
		"DB_MAX_OPEN_CONNS":     "40",
		"DB_MAX_IDLE_CONNS":     "10",
		"DB_CONN_MAX_LIFETIME":  "1h",
		"DB_CONN_MAX_IDLE_TIME": "2m",
		"DB_STATEMENT_TIMEOUT":  "3s",
	} {
		t.Setenv(k, v)
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := c.PostgresPool("academy-api")
	if p.MaxOpenConns != 40 || p.MaxIdleConns != 10 {
		t.Fatalf("unexpected pool sizes: %+v", p)
	}
	if p.ConnMaxLifetime != time.Hour || p.ConnMaxIdleTime != 2*time.Minute || p.StatementTimeout != 3*time.Second {
		t.Fatalf("unexpected pool durations: %+v", p)
	}
	if p.ApplicationName != "academy-api" {
		t.Fatalf("unexpected application name %q", p.ApplicationName)
	}
}

func TestLoad_RejectsMalformedPoolSettings(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("DB_CONN_MAX_LIFETIME", "forever")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected parse errors")
	}
	for _, key := range []string{"DB_MAX_OPEN_CONNS", "DB_CONN_MAX_LIFETIME"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in %q", key, err)
		}
	}
}

func TestValidate_IdleConnsMustNotExceedOpen(t *testing.T) {
	c := validLocal()
	c.DB.MaxOpenConns = 5
	c.DB.MaxIdleConns = 10
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when idle conns exceed open conns")
	}
}

func TestPostgresPool_ZeroLeavesDefaults(t *testing.T) {
	p := validLocal().PostgresPool("").Normalize()
	if p.MaxOpenConns != utils.DefaultMaxOpenConns || p.StatementTimeout != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

// chdir is a Go 1.21 stand-in for testing.T.Chdir (added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
