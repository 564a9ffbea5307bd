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

// SubmitExpense files an expense claim.
func (s *Service) SubmitExpense(ctx context.Context, in ExpenseInput) (*Expense, error) {
	in.Categorie = strings.ToLower(strings.TrimSpace(in.Categorie))
	switch {
	case !slices.Contains(expenseCategories, in.Categorie):
		return nil, apperror.NewValidation("invalid categorie").WithDetail("field", "categorie").WithDetail("allowed", expenseCategories)
	case !in.Montant.IsPositive():
		return nil, apperror.NewValidation("montant must be positive").WithDetail("field", "montant")
	case in.DateDepense.IsZero():
		return nil, apperror.NewValidation("date_depense is required").WithDetail("field", "date_depense")
	}
	if err := domain.Required("description", in.Description); err != nil {
		return nil, err
	}

	e, err := s.employees.GetByID(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEmployee(ctx, security.CapRHWrite, e); err != nil {
		return nil, err
	}

	x := &Expense{
		Base:            entity.NewBase(),
		EmployeeID:      e.ID,
		Categorie:       in.Categorie,
		Montant:         in.Montant,
		DateDepense:     Day(in.DateDepense),
		Description:     strings.TrimSpace(in.Description),
		JustificatifURL: in.JustificatifURL,
		Statut:          StatutEnAttente,
	}
	if err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		return s.expenses.Create(ctx, x)
	}); err != nil {
		return nil, err
	}
	logger.Info(ctx, "expense submitted", "expense_id", x.ID, "employee_id", e.ID, "montant", x.Montant)
	return x, nil
}

// DecideExpense approves or rejects a pending claim.
func (s *Service) DecideExpense(ctx context.Context, expenseID id.ID, d Decision) (*Expense, error) {
	if err := s.policy.Authorize(ctx, security.CapRHApprove, nil); err != nil {
		return nil, err
	}
	return s.updateExpense(ctx, expenseID, StatutEnAttente, func(x *Expense) {
		now := s.now().UTC()
		x.Statut = decided(d.Approved)
		x.ApprovedBy = userID(ctx)
		x.ApprovedAt = &now
		x.CommentaireApprobation = d.Commentaire
	})
}

// ReimburseExpense marks an approved claim as paid back.
func (s *Service) ReimburseExpense(ctx context.Context, expenseID id.ID) (*Expense, error) {
	if err := s.policy.Authorize(ctx, security.CapRHWrite, nil); err != nil {
		return nil, err
	}
	return s.updateExpense(ctx, expenseID, StatutApprouve, func(x *Expense) {
		x.Statut = StatutRembourse
	})
}

func (s *Service) updateExpense(ctx context.Context, expenseID id.ID, from string, change func(*Expense)) (*Expense, error) {
	var x *Expense
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if x, err = s.expenses.GetForUpdate(ctx, expenseID); err != nil {
			return err
		}
		if x.Statut != from {
			if from == StatutEnAttente {
				return alreadyProcessed("EXPENSE_ALREADY_PROCESSED", x.Statut)
			}
			return apperror.NewInvalidStatus("expense", x.Statut, from)
		}
		change(x)
		x.Touch()
		return s.expenses.Update(ctx, x)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "expense updated", "expense_id", x.ID, "statut", x.Statut)
	return x, nil
}

func (s *Service) ListExpenses(ctx context.Context, f ExpenseFilter) (entity.List[Expense], error) {
	own, err := s.selfScope(ctx)
	if err != nil {
		return entity.List[Expense]{}, err
	}
	if own != nil {
		f.EmployeeID = own
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.expenses.List(ctx, f)
	if err != nil {
		return entity.List[Expense]{}, fmt.Errorf("list expenses: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}
