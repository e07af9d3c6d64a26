// Package app wires the cronapp server runtime: config, logging, storage,
// the session registry and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cronapp/cmd/identity"
	authapi "cronapp/cmd/internal/auth/api"
	"cronapp/cmd/internal/auth/session"
	"cronapp/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the cronapp server runtime: it owns HTTP server wiring, the session
// registry sweep and the storage lifecycle.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics  *prometheus.Registry
	sessions *session.Registry

	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	passwords, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := session.NewRegistry(sessCfg,
		session.WithLogger(log),
		session.WithMetrics(session.NewMetrics(metrics)),
	)
	codec, err := session.NewJWTCodec(sessCfg)
	if err != nil {
		return nil, err
	}
	sessions := session.NewService(sessCfg, registry, codec)

	st, users, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log, passwords)
	if err != nil {
		return nil, err
	}

	authCfg := authapi.LoadConfigFromEnv()
	var opts []authapi.HandlerOption
	if authCfg.ResendAPIKey != "" {
		sender, err := authapi.NewResendEmailSender(authCfg.ResendAPIKey, authCfg.EmailFrom)
		if err != nil {
			_ = st.Close(context.Background())
			return nil, err
		}
		opts = append(opts, authapi.WithEmailSender(sender))
	} else {
		log.Warn("email.disabled", "reason", "CRONAPP_RESEND_API_KEY not set")
	}

	authHandler, err := authapi.NewHandler(log, users, sessions, passwords, authCfg, opts...)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   metrics,
		sessions:  registry,
		auth:      authHandler,
	}, nil
}

// Handler returns the complete HTTP handler, middleware included.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.metrics, a.auth)
	return WithRequestLogging(WithSecurityHeaders(WithCORS(mux, a.cfg, a.log)), a.log)
}

// Run starts the session sweep and the HTTP server and blocks until context
// cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	a.sessions.Start(ctx)
	defer a.sessions.Stop()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled, "metrics_enabled", a.cfg.MetricsEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.store.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between the Postgres identity store and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger, passwords password.Config) (Store, identity.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, identity.NewMemoryStore(passwords), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, false, err
	}

	users, err := identity.NewPostgresStore(pool, passwords)
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	if cfg.DBAutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := users.EnsureSchema(migrateCtx); err != nil {
			pool.Close()
			return nil, nil, nil, false, err
		}
		log.Info("db.schema.ensured")
	}

	log.Info("db.enabled.postgres_store")
	return dbStore{pool: pool}, users, pool, true, nil
}

// dbStore owns the pool; identity.PostgresStore only borrows it.
type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
