//go:build integration

// Package dbtest opens the integration-test Postgres database named by
// TEST_DATABASE_DSN with all migrations applied.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"academy-platform/internal/db"
	"academy-platform/pkg/utils"
)

const dsnEnv = "TEST_DATABASE_DSN"

// Open connects and migrates, or skips the test when the DSN is unset.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := utils.OpenPostgres(ctx, dsn, utils.PostgresPoolConfig{MaxOpenConns: 10, ApplicationName: "academy-test"})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := db.Migrate(conn, db.Up, nil); err != nil {
		_ = conn.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Truncate clears tables between tests.
func Truncate(t *testing.T, conn *sql.DB, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := conn.ExecContext(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}
