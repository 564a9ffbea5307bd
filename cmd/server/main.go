// Package main is the entry point for the autoerp API server.
// Multi-tenant: one database per tenant, resolved from X-Tenant-ID.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoerp/internal/config"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain/identity"
	"autoerp/internal/domain/portal"
	"autoerp/internal/infrastructure/cache"
	v1 "autoerp/internal/infrastructure/http/v1"
	"autoerp/internal/infrastructure/http/v1/handlers"
	"autoerp/internal/infrastructure/jobs"
	"autoerp/internal/infrastructure/numerator"
	"autoerp/internal/infrastructure/storage/postgres"
	"autoerp/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDevelopment()})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting autoerp server", "version", version, "env", cfg.Env)

	// --- Meta database ---
	metaPool, err := pgxpool.New(ctx, cfg.MetaDatabaseURL)
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()

	if err := metaPool.Ping(ctx); err != nil {
		log.Fatalw("failed to ping meta database", "error", err)
	}

	// --- Tenants ---
	registry := tenant.NewPostgresRegistry(metaPool)
	managerCfg := cfg.TenantManager()
	tenantManager := tenant.NewManager(managerCfg, registry, log)
	defer tenantManager.Close()

	log.Infow("tenant manager initialized",
		"max_pools", managerCfg.MaxTotalPools,
		"max_conns_per_tenant", managerCfg.MaxConnsPerTenant,
		"idle_timeout", managerCfg.PoolIdleTimeout,
	)
	if cfg.PrewarmPools {
		if err := tenantManager.Prewarm(ctx); err != nil {
			log.Warnw("failed to prewarm some pools", "error", err)
		}
	}

	// --- Redis: portal OTPs, sessions and the job queue ---
	rdb, err := cache.NewRedis(ctx, cache.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer rdb.Close()

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer queue.Close()

	// --- Services ---
	jwtConfig := identity.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.AccessTokenTTL
	jwtService := identity.NewJWTService(jwtConfig)

	auditLog, err := postgres.NewAuditLog()
	if err != nil {
		log.Fatalw("failed to initialize audit log", "error", err)
	}

	identityCfg := identity.DefaultServiceConfig()
	identityCfg.RefreshTokenTTL = cfg.RefreshTokenTTL

	portalCfg := portal.DefaultConfig()
	portalCfg.OTPTTL = cfg.OTPTTL
	portalCfg.MaxAttempts = cfg.OTPMaxAttempts
	portalCfg.SessionTTL = cfg.PortalSessionTTL
	portalCfg.ExposeCode = cfg.IsDevelopment()

	policy := security.DefaultPolicy()
	services := v1.NewServices(v1.ServiceDeps{
		JWT:           jwtService,
		Policy:        policy,
		Numerator:     numerator.NewFromContext(),
		Audit:         auditLog,
		Redis:         rdb,
		Identity:      identityCfg,
		Portal:        portalCfg,
		UploadDir:     cfg.UploadDir,
		UploadMaxSize: cfg.UploadMaxSize,
	})

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		TenantManager:   tenantManager,
		Logger:          log,
		JWTValidator:    jwtService,
		Policy:          policy,
		Services:        services,
		Idempotency:     postgres.NewIdempotencyStore(cfg.IdempotencyTTL),
		CommissionQueue: queue,
		HealthChecks: map[string]handlers.Check{
			"meta_db": metaPool.Ping,
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Version:            version,
		IsDevelopment:      cfg.IsDevelopment(),
		CORSOrigins:        cfg.CORSOrigins,
		RateLimit:          v1.Limit{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow},
		OTPRateLimit:       v1.Limit{Requests: cfg.OTPRateLimit, Window: cfg.OTPRateWindow},
		PortalCookieSecure: cfg.PortalCookieSecure,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
