// Package hr_repo stores employees, attendance, leaves, expenses and commissions.
package hr_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/hr"
	"autoerp/internal/infrastructure/storage/postgres"
)

// New returns every HR repository.
func New() hr.Repositories {
	return hr.Repositories{
		Employees:   NewEmployeeRepo(),
		Attendance:  NewAttendanceRepo(),
		Leaves:      NewLeaveRepo(),
		Expenses:    NewExpenseRepo(),
		Commissions: NewCommissionRepo(),
	}
}

// EmployeeRepo implements hr.EmployeeRepository. Reads join the user for
// nom, prenom and email.
type EmployeeRepo struct {
	table *postgres.Table[hr.Employee]
}

func NewEmployeeRepo() *EmployeeRepo {
	return &EmployeeRepo{
		table: postgres.NewTable[hr.Employee]("employees", "employee", "nom", "prenom", "email").
			WithDuplicates(postgres.Duplicates{
				"employees_matricule_key": func() *apperror.AppError {
					return apperror.NewDuplicate("employee", "matricule", "").WithCode("DUPLICATE_MATRICULE")
				},
				"employees_user_id_key": func() *apperror.AppError {
					return apperror.NewDuplicate("employee", "user_id", "").WithCode("DUPLICATE_EMPLOYEE")
				},
			}),
	}
}

func (r *EmployeeRepo) selectJoined() squirrel.SelectBuilder {
	cols := make([]string, 0, len(r.table.Columns)+3)
	for _, c := range r.table.Columns {
		cols = append(cols, "e."+c)
	}
	cols = append(cols, "u.nom", "u.prenom", "u.email")
	return postgres.Builder.Select(cols...).From("employees e").Join("users u ON u.id = e.user_id")
}

func (r *EmployeeRepo) Create(ctx context.Context, e *hr.Employee) error {
	return r.table.Insert(ctx, e)
}

func (r *EmployeeRepo) GetByID(ctx context.Context, employeeID id.ID) (*hr.Employee, error) {
	return postgres.GetOne[hr.Employee](ctx, r.selectJoined().Where(squirrel.Eq{"e.id": employeeID}), "employee", employeeID.String())
}

func (r *EmployeeRepo) GetByUserID(ctx context.Context, userID id.ID) (*hr.Employee, error) {
	return postgres.GetOne[hr.Employee](ctx, r.selectJoined().Where(squirrel.Eq{"e.user_id": userID}), "employee", userID.String())
}

func (r *EmployeeRepo) ByUserIDs(ctx context.Context, userIDs []id.ID) ([]hr.Employee, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return postgres.SelectAll[hr.Employee](ctx, r.selectJoined().Where(squirrel.Eq{"e.user_id": userIDs}))
}

func (r *EmployeeRepo) Update(ctx context.Context, e *hr.Employee) error {
	return r.table.Update(ctx, e.ID, e, "user_id", "created_by")
}

func (r *EmployeeRepo) ExistsByMatricule(ctx context.Context, matricule string, exclude *id.ID) (bool, error) {
	where := squirrel.And{squirrel.Eq{"matricule": matricule}}
	if exclude != nil {
		where = append(where, squirrel.NotEq{"id": *exclude})
	}
	return r.table.Exists(ctx, where)
}

func (r *EmployeeRepo) ExistsByUserID(ctx context.Context, userID id.ID) (bool, error) {
	return r.table.Exists(ctx, squirrel.Eq{"user_id": userID})
}

func (r *EmployeeRepo) List(ctx context.Context, f hr.EmployeeFilter) ([]hr.Employee, int64, error) {
	q := r.selectJoined()
	if f.Search != "" {
		q = q.Where(postgres.Search(f.Search, "e.matricule", "e.poste", "u.nom", "u.prenom", "u.email"))
	}
	if f.Departement != "" {
		q = q.Where(squirrel.Eq{"e.departement": f.Departement})
	}
	if f.TypeContrat != "" {
		q = q.Where(squirrel.Eq{"e.type_contrat": f.TypeContrat})
	}
	if f.IsActive != nil {
		q = q.Where(squirrel.Eq{"e.is_active": *f.IsActive})
	}
	return postgres.Paginate[hr.Employee](ctx, q, f.Page, "nom", "prenom")
}

// AttendanceRepo implements hr.AttendanceRepository.
type AttendanceRepo struct {
	table *postgres.Table[hr.Attendance]
}

func NewAttendanceRepo() *AttendanceRepo {
	return &AttendanceRepo{
		table: postgres.NewTable[hr.Attendance]("attendance", "attendance").WithDuplicates(postgres.Duplicates{
			"attendance_employee_id_date_key": func() *apperror.AppError {
				return apperror.NewDuplicate("attendance", "date", "").WithCode("DUPLICATE_ATTENDANCE")
			},
		}),
	}
}

func (r *AttendanceRepo) Create(ctx context.Context, a *hr.Attendance) error {
	return r.table.Insert(ctx, a)
}

func (r *AttendanceRepo) Exists(ctx context.Context, employeeID id.ID, date time.Time) (bool, error) {
	return r.table.Exists(ctx, squirrel.Eq{"employee_id": employeeID, "date": hr.Day(date)})
}

func (r *AttendanceRepo) List(ctx context.Context, f hr.AttendanceFilter) ([]hr.Attendance, int64, error) {
	q := r.table.Select()
	if f.EmployeeID != nil {
		q = q.Where(squirrel.Eq{"employee_id": *f.EmployeeID})
	}
	if f.DateDebut != nil {
		q = q.Where(squirrel.GtOrEq{"date": hr.Day(*f.DateDebut)})
	}
	if f.DateFin != nil {
		q = q.Where(squirrel.LtOrEq{"date": hr.Day(*f.DateFin)})
	}
	if f.Statut != "" {
		q = q.Where(squirrel.Eq{"statut": f.Statut})
	}
	return postgres.Paginate[hr.Attendance](ctx, q, f.Page, "date DESC")
}

var (
	_ hr.EmployeeRepository   = (*EmployeeRepo)(nil)
	_ hr.AttendanceRepository = (*AttendanceRepo)(nil)
)
