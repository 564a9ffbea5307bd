package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"autoerp/pkg/logger"
)

// TokenCleaner purges refresh tokens.
type TokenCleaner interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// IdempotencyCleaner purges idempotency records past their TTL.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// MaintenanceJob handles TaskMaintenance for every active tenant in turn.
type MaintenanceJob struct {
	scope       Scope
	tenants     ActiveTenants
	tokens      TokenCleaner
	idempotency IdempotencyCleaner
	log         *logger.Logger
	now         func() time.Time
}

func NewMaintenanceJob(scope Scope, tenants ActiveTenants, tokens TokenCleaner, idem IdempotencyCleaner, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		scope:       scope,
		tenants:     tenants,
		tokens:      tokens,
		idempotency: idem,
		log:         log.WithComponent("maintenance_job"),
		now:         time.Now,
	}
}

func (j *MaintenanceJob) Handle(ctx context.Context, _ *asynq.Task) error {
	ids, err := j.tenants(ctx)
	if err != nil {
		return fmt.Errorf("active tenants: %w", err)
	}

	var errs []error
	for _, tenantID := range ids {
		err := j.scope(ctx, tenantID, func(ctx context.Context) error {
			tokens, err := j.tokens.DeleteExpired(ctx, j.now().UTC())
			if err != nil {
				return err
			}
			keys, err := j.idempotency.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if tokens > 0 || keys > 0 {
				j.log.Infow("tenant cleanup", "tenant_id", tenantID, "refresh_tokens", tokens, "idempotency_keys", keys)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
		}
	}
	return errors.Join(errs...)
}
