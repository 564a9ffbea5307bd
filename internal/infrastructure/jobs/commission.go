package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain/hr"
	"autoerp/pkg/logger"
)

// Calculator computes the commissions of the tenant bound to ctx.
type Calculator interface {
	CalcCommissions(ctx context.Context, periode string) (*hr.CalcResult, error)
}

// Enqueuer is the part of *asynq.Client the fan-out needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CommissionJob handles TaskCommissionCalc and TaskCommissionFanout.
type CommissionJob struct {
	scope    Scope
	tenants  ActiveTenants
	enqueuer Enqueuer
	calc     Calculator
	log      *logger.Logger
	now      func() time.Time
}

func NewCommissionJob(scope Scope, tenants ActiveTenants, enqueuer Enqueuer, calc Calculator, log *logger.Logger) *CommissionJob {
	return &CommissionJob{
		scope:    scope,
		tenants:  tenants,
		enqueuer: enqueuer,
		calc:     calc,
		log:      log.WithComponent("commission_job"),
		now:      time.Now,
	}
}

// Handle computes the commissions of one tenant.
func (j *CommissionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var p CommissionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	if p.TenantID == "" {
		return fmt.Errorf("tenant_id is required: %w", asynq.SkipRetry)
	}
	if p.Periode == "" {
		p.Periode = PreviousPeriode(j.now())
	}

	ctx = appctx.WithUser(ctx, systemUser(p.TenantID))
	err := j.scope(ctx, p.TenantID, func(ctx context.Context) error {
		res, err := j.calc.CalcCommissions(ctx, p.Periode)
		if err != nil {
			return err
		}
		j.log.Infow("commissions computed", "tenant_id", p.TenantID, "periode", p.Periode, "count", res.Count)
		return nil
	})
	if err != nil {
		if permanent(err) {
			return fmt.Errorf("commissions %s/%s: %w: %w", p.TenantID, p.Periode, err, asynq.SkipRetry)
		}
		return fmt.Errorf("commissions %s/%s: %w", p.TenantID, p.Periode, err)
	}
	return nil
}

// Fanout enqueues the previous month's calculation for every active tenant.
// A tenant whose task is still pending is skipped.
func (j *CommissionJob) Fanout(ctx context.Context, _ *asynq.Task) error {
	ids, err := j.tenants(ctx)
	if err != nil {
		return fmt.Errorf("active tenants: %w", err)
	}

	periode := PreviousPeriode(j.now())
	var errs []error
	for _, tenantID := range ids {
		if err := j.Enqueue(ctx, tenantID, periode); err != nil {
			errs = append(errs, err)
		}
	}
	j.log.Infow("commission tasks enqueued", "periode", periode, "tenants", len(ids), "failed", len(errs))
	return errors.Join(errs...)
}

// Enqueue schedules the calculation of periode for tenantID.
func (j *CommissionJob) Enqueue(ctx context.Context, tenantID, periode string) error {
	p := CommissionPayload{TenantID: tenantID, Periode: periode}
	task, err := NewCommissionTask(p)
	if err != nil {
		return err
	}
	_, err = j.enqueuer.EnqueueContext(ctx, task, asynq.TaskID(commissionTaskID(p)))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", tenantID, err)
	}
	return nil
}

// systemUser is the identity background tasks act under.
func systemUser(tenantID string) *appctx.UserContext {
	return &appctx.UserContext{
		TenantID: tenantID,
		Email:    "system@autoerp",
		Role:     string(security.RoleAdmin),
	}
}

// permanent reports errors a retry cannot fix: bad input or an unknown tenant.
func permanent(err error) bool {
	if errors.Is(err, tenant.ErrTenantNotFound) || errors.Is(err, tenant.ErrTenantNotActive) {
		return true
	}
	return apperror.GetHTTPStatus(err) < http.StatusInternalServerError
}
