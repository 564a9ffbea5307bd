package hr

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/domain"
	"autoerp/pkg/logger"
)

// RequestLeave files a leave request. Employees may file their own.
func (s *Service) RequestLeave(ctx context.Context, in LeaveInput) (*Leave, error) {
	in.Type = strings.TrimSpace(in.Type)
	if !slices.Contains(leaveTypes, in.Type) {
		return nil, apperror.NewValidation("invalid leave type").WithDetail("field", "type").WithDetail("allowed", leaveTypes)
	}
	if in.DateDebut.IsZero() || in.DateFin.IsZero() {
		return nil, apperror.NewValidation("date_debut and date_fin are required").WithDetail("field", "date_debut")
	}
	debut, fin := Day(in.DateDebut), Day(in.DateFin)
	if fin.Before(debut) {
		return nil, apperror.NewValidation("date_fin is before date_debut").WithCode("INVALID_DATE_RANGE").WithDetail("field", "date_fin")
	}

	e, err := s.employees.GetByID(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEmployee(ctx, security.CapRHWrite, e); err != nil {
		return nil, err
	}

	l := &Leave{
		Base:            entity.NewBase(),
		EmployeeID:      e.ID,
		Type:            in.Type,
		DateDebut:       debut,
		DateFin:         fin,
		NombreJours:     Days(debut, fin),
		Motif:           in.Motif,
		JustificatifURL: in.JustificatifURL,
		Statut:          StatutEnAttente,
	}
	if err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		return s.leaves.Create(ctx, l)
	}); err != nil {
		return nil, err
	}
	logger.Info(ctx, "leave requested", "leave_id", l.ID, "employee_id", e.ID, "jours", l.NombreJours)
	return l, nil
}

// DecideLeave approves or rejects a pending leave request.
func (s *Service) DecideLeave(ctx context.Context, leaveID id.ID, d Decision) (*Leave, error) {
	if err := s.policy.Authorize(ctx, security.CapRHApprove, nil); err != nil {
		return nil, err
	}
	var l *Leave
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if l, err = s.leaves.GetForUpdate(ctx, leaveID); err != nil {
			return err
		}
		if l.Statut != StatutEnAttente {
			return alreadyProcessed("LEAVE_ALREADY_PROCESSED", l.Statut)
		}
		now := s.now().UTC()
		l.Statut = decided(d.Approved)
		l.ApprovedBy = userID(ctx)
		l.ApprovedAt = &now
		l.CommentaireApprobation = d.Commentaire
		l.Touch()
		return s.leaves.Update(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "leave decided", "leave_id", l.ID, "statut", l.Statut)
	return l, nil
}

// CancelLeave withdraws a pending request. The requester or an HR writer may cancel.
func (s *Service) CancelLeave(ctx context.Context, leaveID id.ID) (*Leave, error) {
	var l *Leave
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if l, err = s.leaves.GetForUpdate(ctx, leaveID); err != nil {
			return err
		}
		e, err := s.employees.GetByID(ctx, l.EmployeeID)
		if err != nil {
			return err
		}
		if err := s.authorizeEmployee(ctx, security.CapRHWrite, e); err != nil {
			return err
		}
		if l.Statut != StatutEnAttente {
			return alreadyProcessed("LEAVE_ALREADY_PROCESSED", l.Statut)
		}
		l.Statut = StatutAnnule
		l.Touch()
		return s.leaves.Update(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListLeaves(ctx context.Context, f LeaveFilter) (entity.List[Leave], error) {
	own, err := s.selfScope(ctx)
	if err != nil {
		return entity.List[Leave]{}, err
	}
	if own != nil {
		f.EmployeeID = own
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.leaves.List(ctx, f)
	if err != nil {
		return entity.List[Leave]{}, fmt.Errorf("list leaves: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

func decided(approved bool) string {
	if approved {
		return StatutApprouve
	}
	return StatutRejete
}

func alreadyProcessed(code, statut string) error {
	return apperror.NewBusinessRule(code, "request has already been processed").WithDetail("statut", statut)
}
