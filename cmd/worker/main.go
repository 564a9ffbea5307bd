// Package main runs the background worker: monthly commissions and tenant cleanup.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoerp/internal/config"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain/hr"
	"autoerp/internal/infrastructure/jobs"
	"autoerp/internal/infrastructure/storage/postgres"
	"autoerp/internal/infrastructure/storage/postgres/auth_repo"
	"autoerp/internal/infrastructure/storage/postgres/hr_repo"
	"autoerp/pkg/logger"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metaPool, err := pgxpool.New(ctx, cfg.MetaDatabaseURL)
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()

	registry := tenant.NewPostgresRegistry(metaPool)
	manager := tenant.NewManager(cfg.TenantManager(), registry, log)
	defer manager.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	client := asynq.NewClient(redisOpts)
	defer client.Close()

	scope := jobs.ManagerScope(manager)
	active := jobs.RegistryTenants(registry)

	hrService := hr.NewService(hr_repo.New(), auth_repo.NewUserRepo(), security.DefaultPolicy(), nil)
	commissionJob := jobs.NewCommissionJob(scope, active, client, hrService, log)
	maintenanceJob := jobs.NewMaintenanceJob(scope, active, auth_repo.NewTokenRepo(), postgres.NewIdempotencyStore(cfg.IdempotencyTTL), log)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      log,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCommissionCalc, Handler: commissionJob.Handle},
			{Type: jobs.TaskCommissionFanout, Handler: commissionJob.Fanout},
			{Type: jobs.TaskMaintenance, Handler: maintenanceJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CommissionCron, Task: jobs.NewCommissionFanoutTask()},
			{Spec: "@hourly", Task: jobs.NewMaintenanceTask()},
		},
	})
	if err != nil {
		log.Fatalw("failed to initialize worker", "error", err)
	}

	log.Infow("starting autoerp worker", "commission_cron", cfg.CommissionCron, "concurrency", cfg.WorkerConcurrency)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("worker stopped", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}
