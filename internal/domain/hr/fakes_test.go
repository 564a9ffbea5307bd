package hr_test

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/hr"
	"autoerp/internal/domain/identity"
)

type store struct {
	mu          sync.Mutex
	employees   map[id.ID]hr.Employee
	attendance  []hr.Attendance
	leaves      map[id.ID]hr.Leave
	expenses    map[id.ID]hr.Expense
	commissions []hr.Commission
	factures    []factureRow
}

type factureRow struct {
	hr.CommissionSource
	statut string
	date   time.Time
}

func newStore() *store {
	return &store{
		employees: map[id.ID]hr.Employee{},
		leaves:    map[id.ID]hr.Leave{},
		expenses:  map[id.ID]hr.Expense{},
	}
}

func (s *store) repos() hr.Repositories {
	return hr.Repositories{
		Employees:   employeeRepo{s},
		Attendance:  attendanceRepo{s},
		Leaves:      leaveRepo{s},
		Expenses:    expenseRepo{s},
		Commissions: commissionRepo{s},
	}
}

type employeeRepo struct{ s *store }

func (r employeeRepo) Create(_ context.Context, e *hr.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.employees[e.ID] = *e
	return nil
}

func (r employeeRepo) GetByID(_ context.Context, employeeID id.ID) (*hr.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[employeeID]
	if !ok {
		return nil, apperror.NewNotFound("employee", employeeID)
	}
	return &e, nil
}

func (r employeeRepo) GetByUserID(_ context.Context, userID id.ID) (*hr.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.employees {
		if e.UserID == userID {
			return &e, nil
		}
	}
	return nil, apperror.NewNotFound("employee", userID)
}

func (r employeeRepo) ByUserIDs(_ context.Context, userIDs []id.ID) ([]hr.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []hr.Employee
	for _, e := range r.s.employees {
		if slices.Contains(userIDs, e.UserID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r employeeRepo) Update(ctx context.Context, e *hr.Employee) error { return r.Create(ctx, e) }

func (r employeeRepo) ExistsByMatricule(_ context.Context, matricule string, exclude *id.ID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.employees {
		if e.Matricule == matricule && (exclude == nil || e.ID != *exclude) {
			return true, nil
		}
	}
	return false, nil
}

func (r employeeRepo) ExistsByUserID(ctx context.Context, userID id.ID) (bool, error) {
	_, err := r.GetByUserID(ctx, userID)
	return err == nil, nil
}

func (r employeeRepo) List(_ context.Context, f hr.EmployeeFilter) ([]hr.Employee, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []hr.Employee
	for _, e := range r.s.employees {
		if f.Departement != "" && e.Departement != f.Departement {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(e.Matricule+" "+e.Nom), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Matricule < out[j].Matricule })
	return out, int64(len(out)), nil
}

type attendanceRepo struct{ s *store }

func (r attendanceRepo) Create(_ context.Context, a *hr.Attendance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.attendance = append(r.s.attendance, *a)
	return nil
}

func (r attendanceRepo) Exists(_ context.Context, employeeID id.ID, date time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attendance {
		if a.EmployeeID == employeeID && a.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (r attendanceRepo) List(_ context.Context, f hr.AttendanceFilter) ([]hr.Attendance, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []hr.Attendance
	for _, a := range r.s.attendance {
		if f.EmployeeID != nil && a.EmployeeID != *f.EmployeeID {
			continue
		}
		if f.DateDebut != nil && a.Date.Before(*f.DateDebut) {
			continue
		}
		if f.DateFin != nil && a.Date.After(*f.DateFin) {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

type leaveRepo struct{ s *store }

func (r leaveRepo) Create(_ context.Context, l *hr.Leave) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.leaves[l.ID] = *l
	return nil
}

func (r leaveRepo) GetForUpdate(_ context.Context, leaveID id.ID) (*hr.Leave, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leaves[leaveID]
	if !ok {
		return nil, apperror.NewNotFound("leave", leaveID)
	}
	return &l, nil
}

func (r leaveRepo) Update(ctx context.Context, l *hr.Leave) error { return r.Create(ctx, l) }

func (r leaveRepo) List(_ context.Context, f hr.LeaveFilter) ([]hr.Leave, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []hr.Leave
	for _, l := range r.s.leaves {
		if f.EmployeeID != nil && l.EmployeeID != *f.EmployeeID {
			continue
		}
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

type expenseRepo struct{ s *store }

func (r expenseRepo) Create(_ context.Context, x *hr.Expense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.expenses[x.ID] = *x
	return nil
}

func (r expenseRepo) GetForUpdate(_ context.Context, expenseID id.ID) (*hr.Expense, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.expenses[expenseID]
	if !ok {
		return nil, apperror.NewNotFound("expense", expenseID)
	}
	return &x, nil
}

func (r expenseRepo) Update(ctx context.Context, x *hr.Expense) error { return r.Create(ctx, x) }

func (r expenseRepo) List(_ context.Context, f hr.ExpenseFilter) ([]hr.Expense, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []hr.Expense
	for _, x := range r.s.expenses {
		if f.EmployeeID != nil && x.EmployeeID != *f.EmployeeID {
			continue
		}
		out = append(out, x)
	}
	return out, int64(len(out)), nil
}

type commissionRepo struct{ s *store }

func (r commissionRepo) DeclaredFactures(_ context.Context, from, to time.Time) ([]hr.CommissionSource, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []hr.CommissionSource
	for _, f := range r.s.factures {
		if f.statut == "declaree" && !f.date.Before(from) && f.date.Before(to) {
			out = append(out, f.CommissionSource)
		}
	}
	return out, nil
}

func (r commissionRepo) Upsert(_ context.Context, rows []hr.Commission) ([]hr.Commission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []hr.Commission
	for _, row := range rows {
		i := slices.IndexFunc(r.s.commissions, func(c hr.Commission) bool {
			return c.EmployeeID == row.EmployeeID && c.FactureID == row.FactureID && c.Periode == row.Periode
		})
		switch {
		case i < 0:
			r.s.commissions = append(r.s.commissions, row)
			out = append(out, row)
		case r.s.commissions[i].Statut == hr.CommissionPayee:
		default:
			existing := &r.s.commissions[i]
			existing.MontantFacture = row.MontantFacture
			existing.TauxCommission = row.TauxCommission
			existing.MontantCommission = row.MontantCommission
			existing.Statut = row.Statut
			out = append(out, *existing)
		}
	}
	return out, nil
}

func (r commissionRepo) List(_ context.Context, f hr.CommissionFilter) ([]hr.Commission, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []hr.Commission
	for _, c := range r.s.commissions {
		if f.EmployeeID != nil && c.EmployeeID != *f.EmployeeID {
			continue
		}
		if f.Periode != "" && c.Periode != f.Periode {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

type users map[id.ID]bool

func (u users) GetByID(_ context.Context, userID id.ID) (*identity.User, error) {
	if !u[userID] {
		return nil, apperror.NewNotFound("user", userID)
	}
	return &identity.User{}, nil
}
