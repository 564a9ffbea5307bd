package hr

import (
	"context"
	"time"

	"autoerp/internal/core/id"
)

type EmployeeRepository interface {
	Create(ctx context.Context, e *Employee) error
	GetByID(ctx context.Context, employeeID id.ID) (*Employee, error)
	GetByUserID(ctx context.Context, userID id.ID) (*Employee, error)
	// ByUserIDs returns the employees of the given users, skipping users without one.
	ByUserIDs(ctx context.Context, userIDs []id.ID) ([]Employee, error)
	Update(ctx context.Context, e *Employee) error
	ExistsByMatricule(ctx context.Context, matricule string, exclude *id.ID) (bool, error)
	ExistsByUserID(ctx context.Context, userID id.ID) (bool, error)
	List(ctx context.Context, f EmployeeFilter) ([]Employee, int64, error)
}

type AttendanceRepository interface {
	Create(ctx context.Context, a *Attendance) error
	Exists(ctx context.Context, employeeID id.ID, date time.Time) (bool, error)
	List(ctx context.Context, f AttendanceFilter) ([]Attendance, int64, error)
}

type LeaveRepository interface {
	Create(ctx context.Context, l *Leave) error
	GetForUpdate(ctx context.Context, leaveID id.ID) (*Leave, error)
	Update(ctx context.Context, l *Leave) error
	List(ctx context.Context, f LeaveFilter) ([]Leave, int64, error)
}

type ExpenseRepository interface {
	Create(ctx context.Context, e *Expense) error
	GetForUpdate(ctx context.Context, expenseID id.ID) (*Expense, error)
	Update(ctx context.Context, e *Expense) error
	List(ctx context.Context, f ExpenseFilter) ([]Expense, int64, error)
}

type CommissionRepository interface {
	// DeclaredFactures returns the declared factures dated in [from, to) that have a commercial.
	DeclaredFactures(ctx context.Context, from, to time.Time) ([]CommissionSource, error)
	// Upsert inserts or refreshes commissions keyed by (employee_id, facture_id, periode).
	// Rows already payee are left untouched and are not returned.
	Upsert(ctx context.Context, rows []Commission) ([]Commission, error)
	List(ctx context.Context, f CommissionFilter) ([]Commission, int64, error)
}

// Repositories groups the HR stores.
type Repositories struct {
	Employees   EmployeeRepository
	Attendance  AttendanceRepository
	Leaves      LeaveRepository
	Expenses    ExpenseRepository
	Commissions CommissionRepository
}
