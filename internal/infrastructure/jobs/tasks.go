// Package jobs runs the asynq background tasks of every tenant.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	QueueDefault = "default"

	// TaskCommissionCalc computes the commissions of one tenant for one month.
	TaskCommissionCalc = "hr:commission_calc"
	// TaskCommissionFanout enqueues TaskCommissionCalc for every active tenant.
	TaskCommissionFanout = "hr:commission_fanout"
	// TaskMaintenance purges expired refresh tokens and idempotency keys.
	TaskMaintenance = "sys:maintenance"
)

// CommissionPayload selects the tenant and the YYYY-MM period.
// An empty Periode means the month before the task runs.
type CommissionPayload struct {
	TenantID string `json:"tenant_id"`
	Periode  string `json:"periode,omitempty"`
}

// NewCommissionTask builds a commission task for one tenant.
func NewCommissionTask(p CommissionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionCalc, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// commissionTaskID keeps one pending task per tenant and period.
func commissionTaskID(p CommissionPayload) string {
	return fmt.Sprintf("commission:%s:%s", p.TenantID, p.Periode)
}

// NewCommissionFanoutTask builds the task registered on the monthly cron.
func NewCommissionFanoutTask() *asynq.Task {
	return asynq.NewTask(TaskCommissionFanout, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// NewMaintenanceTask builds the hourly cleanup task.
func NewMaintenanceTask() *asynq.Task {
	return asynq.NewTask(TaskMaintenance, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// PreviousPeriode returns the YYYY-MM of the month before now.
func PreviousPeriode(now time.Time) string {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format("2006-01")
}
