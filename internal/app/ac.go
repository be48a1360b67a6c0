// Package app wires the two binaries' dependency graphs and runs their HTTP
// servers to completion: connect infrastructure, mount routes, serve until
// ctx is cancelled, then drain.
package app

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wisbric/meetplane/internal/admin"
	"github.com/wisbric/meetplane/internal/audit"
	"github.com/wisbric/meetplane/internal/authmw"
	"github.com/wisbric/meetplane/internal/config"
	"github.com/wisbric/meetplane/internal/crypto"
	"github.com/wisbric/meetplane/internal/httpserver"
	"github.com/wisbric/meetplane/internal/keys"
	"github.com/wisbric/meetplane/internal/platform"
	"github.com/wisbric/meetplane/internal/ratelimit"
	"github.com/wisbric/meetplane/internal/repository"
	"github.com/wisbric/meetplane/internal/telemetry"
	"github.com/wisbric/meetplane/internal/tokenservice"
)

// requiredScopeAdminServices is the scope every admin-only AC endpoint
// requires.
const requiredScopeAdminServices = "admin:services"

// requiredScopeMintTokens is the scope the GC's service token must carry to
// mint meeting/guest tokens on a participant's behalf.
const requiredScopeMintTokens = "internal:mint-tokens"

// RunAC is the Authentication Controller's entry point.
func RunAC(ctx context.Context, cfg *config.ACConfig) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting authentication controller", "listen", cfg.BindAddress)

	pool, err := platform.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(httpserver.MetricsCollectors()...)
	metricsReg.MustRegister(telemetry.All()...)

	orgRepo := repository.NewOrganizationRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	userRoleRepo := repository.NewUserRoleRepository(pool)
	credRepo := repository.NewServiceCredentialRepository(pool)
	authEventRepo := repository.NewAuthEventRepository(pool)
	signingKeyRepo := repository.NewSigningKeyRepository(pool)
	auditLogRepo := repository.NewAuditLogRepository(pool)

	auditWriter := audit.NewWriter(auditLogRepo, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	keySvc := keys.New(signingKeyRepo, cfg.MasterKey(), cfg.BindAddress, auditWriter)
	if err := keySvc.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing signing key: %w", err)
	}

	registerRL := ratelimit.New(rdb, "register", 5, time.Hour)
	tokenSvc := tokenservice.New(credRepo, authEventRepo, userRepo, userRoleRepo, keySvc, registerRL, auditWriter, logger)

	// AC is the key producer, not a remote JWKS consumer: its own admin and
	// internal routes resolve signing keys directly off signingKeyRepo
	// rather than round-tripping through the HTTP-fetching cache the GC
	// uses.
	resolve := localKeyResolver(signingKeyRepo)

	srv := httpserver.New(logger, metricsReg, cfg.CORSAllowedOrigins, []httpserver.ReadinessCheck{
		{Name: "database", Fn: func(ctx context.Context) error { return pool.Ping(ctx) }},
		{Name: "signing_key", Fn: func(ctx context.Context) error {
			_, err := signingKeyRepo.GetActive(ctx)
			return err
		}},
	})

	keyHandler := keys.NewHandler(keySvc)
	srv.Router.Mount("/.well-known/jwks.json", keyHandler.JWKSRoutes())

	tokenHandler := tokenservice.NewHandler(tokenSvc, cfg.BindAddress)
	srv.Router.Route("/api/v1/auth", func(r chi.Router) {
		r.Mount("/", tokenHandler.ServiceTokenRoutes())
		r.Group(func(r chi.Router) {
			r.Use(authmw.OrgExtractor(orgRepo))
			r.Mount("/", tokenHandler.TenantRoutes())
		})
	})

	adminHandler := admin.NewHandler(credRepo)
	srv.Router.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(authmw.Bearer(resolve, cfg.JWTClockSkewSeconds))
		r.Use(authmw.RequireScope(requiredScopeAdminServices))
		r.Mount("/", adminHandler.Routes())
	})

	srv.Router.Route("/internal", func(r chi.Router) {
		r.Use(authmw.Bearer(resolve, cfg.JWTClockSkewSeconds))
		r.Use(authmw.RequireScope(requiredScopeAdminServices))
		r.Mount("/", keyHandler.AdminRoutes())
	})

	srv.Router.Route("/internal/api/v1", func(r chi.Router) {
		r.Use(authmw.Bearer(resolve, cfg.JWTClockSkewSeconds))
		r.Use(authmw.RequireScope(requiredScopeMintTokens))
		r.Mount("/", tokenHandler.InternalRoutes())
	})

	httpSrv := &http.Server{
		Addr:         cfg.BindAddress,
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveWithDrain(ctx, httpSrv, logger, time.Duration(cfg.DrainSeconds)*time.Second)
}

// localKeyResolver builds a crypto.KeyResolver backed directly by the
// signing key table, for AC's own bearer-gated routes. Unlike the GC's
// JWKSCache, it never fetches over HTTP: AC holds the keys it signs with.
func localKeyResolver(repo *repository.SigningKeyRepository) crypto.KeyResolver {
	return func(kid string) (ed25519.PublicKey, error) {
		key, err := repo.GetByKeyID(context.Background(), kid)
		if err != nil {
			return nil, err
		}
		return crypto.ParsePublicKeyPEM(key.PublicKeyPEM)
	}
}

// serveWithDrain starts httpSrv in the background and blocks until ctx is
// cancelled, at which point it shuts down the server within drain: a
// background goroutine serving, an error channel, and a select between
// ctx.Done() and the server's own failure.
func serveWithDrain(ctx context.Context, httpSrv *http.Server, logger *slog.Logger, drain time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down http server", "drain_seconds", drain.Seconds())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
