package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain/hr"
	"autoerp/pkg/logger"
)

type scopeKey struct{}

func fakeScope(known ...string) Scope {
	return func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
		for _, k := range known {
			if k == tenantID {
				return fn(context.WithValue(ctx, scopeKey{}, tenantID))
			}
		}
		return tenant.ErrTenantNotFound
	}
}

func staticTenants(ids ...string) ActiveTenants {
	return func(context.Context) ([]string, error) { return ids, nil }
}

type fakeCalc struct {
	mu    sync.Mutex
	calls []string
	users []*appctx.UserContext
	err   error
}

func (f *fakeCalc) CalcCommissions(ctx context.Context, periode string) (*hr.CalcResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenantID, _ := ctx.Value(scopeKey{}).(string)
	f.calls = append(f.calls, tenantID+"/"+periode)
	f.users = append(f.users, appctx.GetUser(ctx))
	if f.err != nil {
		return nil, f.err
	}
	return &hr.CalcResult{Periode: periode}, nil
}

type fakeEnqueuer struct {
	tasks    []*asynq.Task
	conflict map[string]bool
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	var p CommissionPayload
	_ = json.Unmarshal(task.Payload(), &p)
	if f.conflict[p.TenantID] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 31, 2, 0, 0, 0, time.UTC)
}

func commissionTask(t *testing.T, p CommissionPayload) *asynq.Task {
	task, err := NewCommissionTask(p)
	require.NoError(t, err)
	return task
}

func TestPreviousPeriode(t *testing.T) {
	assert.Equal(t, "2026-02", PreviousPeriode(fixedNow()))
	assert.Equal(t, "2025-12", PreviousPeriode(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)))
}

func TestCommissionJob_Handle(t *testing.T) {
	calc := &fakeCalc{}
	job := NewCommissionJob(fakeScope("t1"), staticTenants("t1"), &fakeEnqueuer{}, calc, logger.NewNop())
	job.now = fixedNow

	require.NoError(t, job.Handle(context.Background(), commissionTask(t, CommissionPayload{TenantID: "t1", Periode: "2026-01"})))
	require.NoError(t, job.Handle(context.Background(), commissionTask(t, CommissionPayload{TenantID: "t1"})))

	assert.Equal(t, []string{"t1/2026-01", "t1/2026-02"}, calc.calls)
	require.NotNil(t, calc.users[0])
	assert.True(t, calc.users[0].IsAdmin())
	assert.Equal(t, "t1", calc.users[0].TenantID)
}

func TestCommissionJob_HandleSkipsRetry(t *testing.T) {
	calc := &fakeCalc{}
	job := NewCommissionJob(fakeScope("t1"), staticTenants(), &fakeEnqueuer{}, calc, logger.NewNop())

	err := job.Handle(context.Background(), asynq.NewTask(TaskCommissionCalc, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)

	err = job.Handle(context.Background(), commissionTask(t, CommissionPayload{}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), commissionTask(t, CommissionPayload{TenantID: "gone", Periode: "2026-01"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

	calc.err = apperror.NewValidation("invalid periode")
	err = job.Handle(context.Background(), commissionTask(t, CommissionPayload{TenantID: "t1", Periode: "2026-13"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCommissionJob_HandleRetriesTransient(t *testing.T) {
	calc := &fakeCalc{err: errors.New("connection reset")}
	job := NewCommissionJob(fakeScope("t1"), staticTenants(), &fakeEnqueuer{}, calc, logger.NewNop())

	err := job.Handle(context.Background(), commissionTask(t, CommissionPayload{TenantID: "t1", Periode: "2026-01"}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestCommissionJob_Fanout(t *testing.T) {
	enq := &fakeEnqueuer{conflict: map[string]bool{"t2": true}}
	job := NewCommissionJob(fakeScope(), staticTenants("t1", "t2", "t3"), enq, &fakeCalc{}, logger.NewNop())
	job.now = fixedNow

	require.NoError(t, job.Fanout(context.Background(), NewCommissionFanoutTask()))

	require.Len(t, enq.tasks, 2)
	var got []string
	for _, task := range enq.tasks {
		assert.Equal(t, TaskCommissionCalc, task.Type())
		var p CommissionPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &p))
		assert.Equal(t, "2026-02", p.Periode)
		got = append(got, p.TenantID)
	}
	assert.Equal(t, []string{"t1", "t3"}, got)
}

type fakeCleaner struct {
	tokens, keys int64
	calls        []string
	cutoff       time.Time
}

func (f *fakeCleaner) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tenantID, _ := ctx.Value(scopeKey{}).(string)
	f.calls = append(f.calls, "tokens:"+tenantID)
	f.cutoff = before
	return f.tokens, nil
}

func (f *fakeCleaner) CleanupExpired(ctx context.Context) (int64, error) {
	tenantID, _ := ctx.Value(scopeKey{}).(string)
	f.calls = append(f.calls, "keys:"+tenantID)
	return f.keys, nil
}

func TestMaintenanceJob(t *testing.T) {
	cleaner := &fakeCleaner{tokens: 3}
	job := NewMaintenanceJob(fakeScope("t1", "t2"), staticTenants("t1", "missing", "t2"), cleaner, cleaner, logger.NewNop())
	job.now = fixedNow

	err := job.Handle(context.Background(), NewMaintenanceTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	assert.Contains(t, err.Error(), "missing")

	assert.Equal(t, []string{"tokens:t1", "keys:t1", "tokens:t2", "keys:t2"}, cleaner.calls)
	assert.Equal(t, fixedNow(), cleaner.cutoff)
}
