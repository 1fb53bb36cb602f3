// migrate applies the embedded SQL migrations to the configured Postgres database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"academy-platform/internal/config"
	"academy-platform/internal/db"
	"academy-platform/pkg/logger"
	"academy-platform/pkg/utils"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	if !cfg.UsesPostgres() {
		log.Error("migrations require STORE_DRIVER=postgres")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool := cfg.PostgresPool("academy-migrate")
	pool.MaxOpenConns, pool.MaxIdleConns = 2, 2
	pool.StatementTimeout = 0 // no cap on DDL
	conn, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), pool)
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(conn, db.Direction(*direction), log); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}
	if v, dirty, err := db.Version(conn); err == nil {
		log.Info("schema version", "version", v, "dirty", dirty)
	}
}
