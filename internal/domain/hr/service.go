package hr

import (
	"context"
	"fmt"
	"slices"
	"time"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tx"
	"autoerp/internal/domain"
	"autoerp/internal/domain/identity"
	"autoerp/pkg/logger"
)

// Users checks that an employee refers to an existing account.
type Users interface {
	GetByID(ctx context.Context, userID id.ID) (*identity.User, error)
}

type Service struct {
	employees   EmployeeRepository
	attendance  AttendanceRepository
	leaves      LeaveRepository
	expenses    ExpenseRepository
	commissions CommissionRepository
	users       Users
	policy      *security.Policy
	txManager   tx.Manager
	now         func() time.Time
}

func NewService(repos Repositories, users Users, policy *security.Policy, txManager tx.Manager) *Service {
	return &Service{
		employees:   repos.Employees,
		attendance:  repos.Attendance,
		leaves:      repos.Leaves,
		expenses:    repos.Expenses,
		commissions: repos.Commissions,
		users:       users,
		policy:      policy,
		txManager:   txManager,
		now:         time.Now,
	}
}

// --- Employees ---

// CreateEmployee registers the HR record of an existing user.
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	if err := s.policy.Authorize(ctx, security.CapRHWrite, nil); err != nil {
		return nil, err
	}
	e := &Employee{Base: entity.NewBase(), UserID: in.UserID, IsActive: true, CreatedBy: userID(ctx)}
	in.apply(e)
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, e.UserID); err != nil {
		return nil, err
	}

	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		if exists, err := s.employees.ExistsByUserID(ctx, e.UserID); err != nil {
			return err
		} else if exists {
			return apperror.NewDuplicate("employee", "user_id", e.UserID.String()).WithCode("DUPLICATE_EMPLOYEE")
		}
		if err := s.checkMatricule(ctx, e.Matricule, nil); err != nil {
			return err
		}
		if err := s.checkManager(ctx, e.ManagerID); err != nil {
			return err
		}
		return s.employees.Create(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "employee created", "employee_id", e.ID, "matricule", e.Matricule)
	return e, nil
}

// UpdateEmployee changes the non-nil fields of in.
func (s *Service) UpdateEmployee(ctx context.Context, employeeID id.ID, in EmployeeInput) (*Employee, error) {
	if err := s.policy.Authorize(ctx, security.CapRHWrite, nil); err != nil {
		return nil, err
	}
	var e *Employee
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if e, err = s.employees.GetByID(ctx, employeeID); err != nil {
			return err
		}
		oldMatricule := e.Matricule
		in.apply(e)
		if err := e.Validate(ctx); err != nil {
			return err
		}
		if e.Matricule != oldMatricule {
			if err := s.checkMatricule(ctx, e.Matricule, &e.ID); err != nil {
				return err
			}
		}
		if in.ManagerID != nil {
			if err := s.checkManager(ctx, e.ManagerID); err != nil {
				return err
			}
		}
		e.Touch()
		return s.employees.Update(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) checkMatricule(ctx context.Context, matricule string, exclude *id.ID) error {
	exists, err := s.employees.ExistsByMatricule(ctx, matricule, exclude)
	if err != nil {
		return fmt.Errorf("check matricule: %w", err)
	}
	if exists {
		return apperror.NewDuplicate("employee", "matricule", matricule).WithCode("DUPLICATE_MATRICULE")
	}
	return nil
}

func (s *Service) checkManager(ctx context.Context, managerID *id.ID) error {
	if managerID == nil {
		return nil
	}
	_, err := s.employees.GetByID(ctx, *managerID)
	if apperror.IsNotFound(err) {
		return apperror.NewValidation("manager not found").WithCode("MANAGER_NOT_FOUND").WithDetail("field", "manager_id")
	}
	return err
}

// GetEmployee returns an employee. Without rh:read only the caller's own record is visible.
func (s *Service) GetEmployee(ctx context.Context, employeeID id.ID) (*Employee, error) {
	e, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEmployee(ctx, security.CapRHRead, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Me returns the employee record of the authenticated user.
func (s *Service) Me(ctx context.Context) (*Employee, error) {
	uid := userID(ctx)
	if uid == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return s.employees.GetByUserID(ctx, *uid)
}

func (s *Service) ListEmployees(ctx context.Context, f EmployeeFilter) (entity.List[Employee], error) {
	if err := s.policy.Authorize(ctx, security.CapRHRead, nil); err != nil {
		return entity.List[Employee]{}, err
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.employees.List(ctx, f)
	if err != nil {
		return entity.List[Employee]{}, fmt.Errorf("list employees: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

// authorizeEmployee lets through holders of broad, then falls back to
// rh:self on the employee's own record.
func (s *Service) authorizeEmployee(ctx context.Context, broad security.Capability, e *Employee) error {
	if s.policy.Allows(appctx.GetUser(ctx), broad) {
		return nil
	}
	return s.policy.Authorize(ctx, security.CapRHSelf, e.Resource())
}

// selfScope returns nil for holders of rh:read, else the caller's own employee id.
func (s *Service) selfScope(ctx context.Context) (*id.ID, error) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if s.policy.Allows(user, security.CapRHRead) {
		return nil, nil
	}
	me, err := s.Me(ctx)
	if err != nil {
		return nil, err
	}
	return &me.ID, nil
}

// --- Attendance ---

// RecordAttendance records the presence of an employee for one day.
func (s *Service) RecordAttendance(ctx context.Context, in AttendanceInput) (*Attendance, error) {
	if err := s.policy.Authorize(ctx, security.CapRHWrite, nil); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	if !slices.Contains(attendanceStatuses, in.Statut) {
		return nil, apperror.NewValidation("invalid statut").WithDetail("field", "statut").WithDetail("allowed", attendanceStatuses)
	}
	a := &Attendance{
		ID:           id.New(),
		EmployeeID:   in.EmployeeID,
		Date:         Day(in.Date),
		HeureArrivee: in.HeureArrivee,
		HeureDepart:  in.HeureDepart,
		Statut:       in.Statut,
		Commentaire:  in.Commentaire,
		CreatedBy:    userID(ctx),
		CreatedAt:    s.now().UTC(),
	}
	if err := a.ComputeHours(); err != nil {
		return nil, err
	}

	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		if _, err := s.employees.GetByID(ctx, a.EmployeeID); err != nil {
			return err
		}
		exists, err := s.attendance.Exists(ctx, a.EmployeeID, a.Date)
		if err != nil {
			return fmt.Errorf("check attendance: %w", err)
		}
		if exists {
			return apperror.NewConflict("attendance already recorded for this date").
				WithCode("DUPLICATE_ATTENDANCE").
				WithDetail("date", a.Date.Format(time.DateOnly))
		}
		return s.attendance.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAttendance(ctx context.Context, f AttendanceFilter) (entity.List[Attendance], error) {
	own, err := s.selfScope(ctx)
	if err != nil {
		return entity.List[Attendance]{}, err
	}
	if own != nil {
		f.EmployeeID = own
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.attendance.List(ctx, f)
	if err != nil {
		return entity.List[Attendance]{}, fmt.Errorf("list attendance: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

func userID(ctx context.Context) *id.ID {
	v, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil || id.IsNil(v) {
		return nil
	}
	return &v
}
