package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wisbric/meetplane/internal/acclient"
	"github.com/wisbric/meetplane/internal/audit"
	"github.com/wisbric/meetplane/internal/authmw"
	"github.com/wisbric/meetplane/internal/config"
	"github.com/wisbric/meetplane/internal/httpserver"
	"github.com/wisbric/meetplane/internal/meetings"
	"github.com/wisbric/meetplane/internal/oauthclient"
	"github.com/wisbric/meetplane/internal/platform"
	"github.com/wisbric/meetplane/internal/ratelimit"
	"github.com/wisbric/meetplane/internal/registry"
	"github.com/wisbric/meetplane/internal/repository"
	"github.com/wisbric/meetplane/internal/telemetry"
)

// requiredScopeMCMH is the scope meeting-controller/media-handler service
// tokens must carry to reach the registry's internal RPC surface.
const requiredScopeMCMH = "internal:registry"

// requiredScopeAdminAudit is the scope required to read an organization's
// audit log.
const requiredScopeAdminAudit = "admin:services"

// RunGC is the Global Controller's entry point.
func RunGC(ctx context.Context, cfg *config.GCConfig) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting global controller", "listen", cfg.BindAddress, "region", cfg.Region)

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
	metricsReg.MustRegister(telemetry.All()...)

	orgRepo := repository.NewOrganizationRepository(pool)
	meetingRepo := repository.NewMeetingRepository(pool)
	mcRepo := repository.NewMeetingControllerRepository(pool)
	mhRepo := repository.NewMediaHandlerRepository(pool)
	assignmentRepo := repository.NewMeetingAssignmentRepository(pool)
	auditLogRepo := repository.NewAuditLogRepository(pool)

	auditWriter := audit.NewWriter(auditLogRepo, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	// oauthMgr maintains the GC's own service bearer token, refreshed ahead
	// of expiry in the background, so every outbound call to AC or to an MC
	// always has a live token to present.
	oauthMgr := oauthclient.New(cfg.ACTokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Scope, logger)
	go oauthMgr.Run(ctx)
	if err := oauthMgr.WaitReady(ctx); err != nil {
		return fmt.Errorf("waiting for initial service token: %w", err)
	}

	ac := acclient.New(cfg.ACBaseURL, oauthMgr.Current)

	staleThreshold := time.Duration(cfg.MCStalenessThresholdSeconds) * time.Second
	registrySvc := registry.New(mcRepo, mhRepo, assignmentRepo, meetingRepo, cfg.Region, staleThreshold, oauthMgr.Current, logger)

	meetingSvc := meetings.New(meetingRepo, orgRepo, auditWriter, logger)

	guestRL := ratelimit.New(rdb, "guest-token", cfg.GuestTokenRateLimitPerMinute, time.Minute)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	jwksCache := authmw.NewJWKSCache(cfg.ACJWKSURL, httpClient, time.Hour)

	meetingHandler := meetings.NewHandler(meetingSvc, registrySvc, ac, guestRL)
	registryHandler := registry.NewHandler(registrySvc)
	auditHandler := audit.NewHandler(auditLogRepo, logger)

	metricsReg.MustRegister(httpserver.MetricsCollectors()...)
	srv := httpserver.New(logger, metricsReg, cfg.CORSAllowedOrigins, []httpserver.ReadinessCheck{
		{Name: "database", Fn: func(ctx context.Context) error { return pool.Ping(ctx) }},
	})

	srv.Router.Route("/api/v1/meetings", func(r chi.Router) {
		r.Use(authmw.OrgExtractor(orgRepo))
		r.Mount("/", meetingHandler.Routes(authmw.Bearer(jwksCache.Resolve, cfg.JWTClockSkewSeconds)))
	})

	srv.Router.Route("/api/v1/admin/audit-logs", func(r chi.Router) {
		r.Use(authmw.OrgExtractor(orgRepo))
		r.Use(authmw.Bearer(jwksCache.Resolve, cfg.JWTClockSkewSeconds))
		r.Use(authmw.RequireScope(requiredScopeAdminAudit))
		r.Mount("/", auditHandler.Routes())
	})

	srv.Router.Route("/internal/rpc", func(r chi.Router) {
		r.Use(authmw.Bearer(jwksCache.Resolve, cfg.JWTClockSkewSeconds))
		r.Use(authmw.RequireScope(requiredScopeMCMH))
		r.Mount("/", registryHandler.Routes())
	})

	go registry.RunHealthSweep(ctx, mcRepo, mhRepo, staleThreshold, time.Duration(cfg.HealthSweepIntervalSeconds)*time.Second, logger)
	go registry.RunAssignmentCleanup(ctx, assignmentRepo,
		time.Duration(cfg.AssignmentInactivityMinutes)*time.Minute,
		time.Duration(cfg.AssignmentRetentionHours)*time.Hour,
		time.Duration(cfg.AssignmentCleanupIntervalSecs)*time.Second,
		logger)

	httpSrv := &http.Server{
		Addr:         cfg.BindAddress,
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveWithDrain(ctx, httpSrv, logger, time.Duration(cfg.DrainSeconds)*time.Second)
}
