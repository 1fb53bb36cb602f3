package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"academy-platform/internal/audit"
	"academy-platform/internal/auth"
	"academy-platform/internal/config"
	"academy-platform/internal/httpapi"
	"academy-platform/internal/identity"
	"academy-platform/internal/isolation"
	"academy-platform/internal/metrics"
	"academy-platform/internal/session"
	"academy-platform/internal/tenant"
	"academy-platform/pkg/logger"
	"academy-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	var db *sql.DB
	if cfg.UsesPostgres() {
		db, err = utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), cfg.PostgresPool("academy-api"))
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	a, err := buildDeps(cfg, db, rdb, tokens, m, log)
	if err != nil {
		log.Error("service init failed", "err", err)
		os.Exit(1)
	}
	if db == nil {
		if err := seedDemo(rootCtx, a, cfg.Tenant.BaseDomain, log); err != nil {
			log.Error("demo seed failed", "err", err)
			os.Exit(1)
		}
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(tenant.FromHost(a.registry, cfg.Tenant.BaseDomain))

	registerRoutes(r, db, httpapi.Handlers{
		Sessions:     a.sessions,
		Users:        a.users,
		Audit:        a.audit,
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.IsProduction(),
	}, httpapi.RequireSession(a.sessions, cfg.Session.CookieName, m))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "store", cfg.Store.Driver, "redis", rdb != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

type app struct {
	registry tenant.Registry
	sessions *session.Service
	users    *identity.Service
	audit    *audit.Service
	tenants  *tenant.MemoryRegistry
}

// buildDeps assembles the stores and services. A nil db selects the
// in-memory backends.
func buildDeps(cfg config.Config, db *sql.DB, rdb *redis.Client, tokens *auth.Manager, m *metrics.Metrics, log *slog.Logger) (app, error) {
	enf := isolation.NewEnforcer(isolation.WithLogger(log), isolation.WithObserver(m))

	var (
		out      app
		users    identity.Repository
		events   audit.Repository
		sessions session.Store
		err      error
	)
	if db != nil {
		out.registry = tenant.NewPostgresRegistry(db)
		if users, err = identity.NewPostgresRepository(db, enf); err != nil {
			return app{}, err
		}
		if events, err = audit.NewPostgresRepository(db, enf); err != nil {
			return app{}, err
		}
		sessions = session.NewPostgresStore(db)
	} else {
		out.tenants = tenant.NewMemoryRegistry()
		out.registry = out.tenants
		if users, err = identity.NewMemoryRepository(enf); err != nil {
			return app{}, err
		}
		if events, err = audit.NewMemoryRepository(enf); err != nil {
			return app{}, err
		}
		sessions = session.NewMemoryStore()
	}
	if rdb != nil {
		sessions = session.NewCachedStore(sessions, rdb, cfg.Auth.SessionMaxLifetime+cfg.Auth.ClockSkew, log)
	}

	out.audit = audit.NewService(events).WithLogger(log)
	enf.AddObserver(out.audit)
	out.users = identity.NewService(users)
	out.sessions = session.NewService(sessions, tokens, session.Config{
		IdleTimeout:   cfg.Session.IdleTimeout,
		TouchInterval: cfg.Session.TouchInterval,
		MaxConcurrent: cfg.Session.MaxConcurrent,
		FailOpenReads: cfg.Session.FailOpenReads,
	}, session.WithLogger(log), session.WithRecorder(m), session.WithAuditor(out.audit))
	return out, nil
}
