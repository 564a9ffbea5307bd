package hr_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/hr"
	"autoerp/internal/infrastructure/storage/postgres"
)

// LeaveRepo implements hr.LeaveRepository.
type LeaveRepo struct {
	table *postgres.Table[hr.Leave]
}

func NewLeaveRepo() *LeaveRepo {
	return &LeaveRepo{table: postgres.NewTable[hr.Leave]("leaves", "leave")}
}

func (r *LeaveRepo) Create(ctx context.Context, l *hr.Leave) error {
	return r.table.Insert(ctx, l)
}

func (r *LeaveRepo) GetForUpdate(ctx context.Context, leaveID id.ID) (*hr.Leave, error) {
	return r.table.GetByID(ctx, leaveID, true)
}

func (r *LeaveRepo) Update(ctx context.Context, l *hr.Leave) error {
	return r.table.Update(ctx, l.ID, l, "employee_id")
}

func (r *LeaveRepo) List(ctx context.Context, f hr.LeaveFilter) ([]hr.Leave, int64, error) {
	q := r.table.Select()
	if f.EmployeeID != nil {
		q = q.Where(squirrel.Eq{"employee_id": *f.EmployeeID})
	}
	if f.Statut != "" {
		q = q.Where(squirrel.Eq{"statut": f.Statut})
	}
	if f.Type != "" {
		q = q.Where(squirrel.Eq{"type": f.Type})
	}
	return postgres.Paginate[hr.Leave](ctx, q, f.Page, "date_debut DESC")
}

// ExpenseRepo implements hr.ExpenseRepository.
type ExpenseRepo struct {
	table *postgres.Table[hr.Expense]
}

func NewExpenseRepo() *ExpenseRepo {
	return &ExpenseRepo{table: postgres.NewTable[hr.Expense]("expenses", "expense")}
}

func (r *ExpenseRepo) Create(ctx context.Context, e *hr.Expense) error {
	return r.table.Insert(ctx, e)
}

func (r *ExpenseRepo) GetForUpdate(ctx context.Context, expenseID id.ID) (*hr.Expense, error) {
	return r.table.GetByID(ctx, expenseID, true)
}

func (r *ExpenseRepo) Update(ctx context.Context, e *hr.Expense) error {
	return r.table.Update(ctx, e.ID, e, "employee_id")
}

func (r *ExpenseRepo) List(ctx context.Context, f hr.ExpenseFilter) ([]hr.Expense, int64, error) {
	q := r.table.Select()
	if f.EmployeeID != nil {
		q = q.Where(squirrel.Eq{"employee_id": *f.EmployeeID})
	}
	if f.Categorie != "" {
		q = q.Where(squirrel.Eq{"categorie": f.Categorie})
	}
	if f.Statut != "" {
		q = q.Where(squirrel.Eq{"statut": f.Statut})
	}
	return postgres.Paginate[hr.Expense](ctx, q, f.Page, "date_depense DESC")
}

var (
	_ hr.LeaveRepository   = (*LeaveRepo)(nil)
	_ hr.ExpenseRepository = (*ExpenseRepo)(nil)
)
