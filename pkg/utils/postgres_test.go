package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPostgresPoolNormalizeDefaults(t *testing.T) {
	c := PostgresPoolConfig{}.Normalize()
	if c.MaxOpenConns != DefaultMaxOpenConns || c.MaxIdleConns != DefaultMaxOpenConns {
		t.Fatalf("unexpected pool sizes: %+v", c)
	}
	if c.ConnMaxLifetime != DefaultConnMaxLifetime || c.PingTimeout != DefaultPingTimeout {
		t.Fatalf("unexpected durations: %+v", c)
	}
}

func TestPostgresPoolNormalizeCapsIdle(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 5, MaxIdleConns: 50, PingTimeout: time.Second}.Normalize()
	if c.MaxOpenConns != 5 || c.MaxIdleConns != 5 {
		t.Fatalf("idle conns not capped at max open: %+v", c)
	}
	if c.PingTimeout != time.Second {
		t.Fatalf("explicit ping timeout overwritten: %+v", c)
	}
}

func TestPostgresPoolRuntimeParams(t *testing.T) {
	p := PostgresPoolConfig{ApplicationName: "academy-api", StatementTimeout: 3 * time.Second}.runtimeParams()
	if p["application_name"] != "academy-api" || p["statement_timeout"] != "3000" {
		t.Fatalf("unexpected runtime params: %v", p)
	}
	if len(PostgresPoolConfig{}.runtimeParams()) != 0 {
		t.Fatalf("zero config must not set runtime params")
	}
}

func TestOpenPostgresRejectsBadDSNWithoutEcho(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "postgres://u:hunter2@[bad", PostgresPoolConfig{})
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if got := err.Error(); got != "postgres: invalid connection string" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(dup) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation reported as unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) || IsUniqueViolation(nil) {
		t.Fatalf("plain errors are not unique violations")
	}
}
