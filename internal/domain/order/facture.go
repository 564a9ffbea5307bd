package order

import (
	"context"
	"fmt"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/domain"
	"autoerp/internal/domain/audit"
	"autoerp/pkg/logger"
)

// Declarer moves a facture from brouillon to declaree.
func (s *Service) Declarer(ctx context.Context, factureID id.ID) (*Facture, error) {
	var f *Facture
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if f, err = s.loadFacture(ctx, factureID, FactureBrouillon); err != nil {
			return err
		}
		now := s.now().UTC()
		f.DateDeclaree = &now
		return s.factureTransition(ctx, f, FactureDeclaree, audit.ActionDeclare, nil)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "facture declared", "facture_id", f.ID, "numero", f.Numero)
	return f, nil
}

// MarquerImpayee flags a declared facture as overdue.
func (s *Service) MarquerImpayee(ctx context.Context, factureID id.ID) (*Facture, error) {
	var f *Facture
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if f, err = s.loadFacture(ctx, factureID, FactureDeclaree); err != nil {
			return err
		}
		return s.factureTransition(ctx, f, FactureImpayee, audit.ActionPayment, nil)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// EnregistrerPaiement records a payment. The facture becomes payee when
// nothing remains due; paying more than the remaining amount is refused.
func (s *Service) EnregistrerPaiement(ctx context.Context, factureID id.ID, in PaiementInput) (*Facture, error) {
	if !in.Montant.IsPositive() {
		return nil, apperror.NewValidation("montant must be positive").WithDetail("field", "montant")
	}

	var f *Facture
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if f, err = s.loadFacture(ctx, factureID, FactureDeclaree, FactureImpayee); err != nil {
			return err
		}
		if in.Montant.GreaterThan(f.MontantRestant) {
			return apperror.NewBusinessRule("OVERPAYMENT", "payment exceeds the remaining amount").
				WithDetail("montant_restant", f.MontantRestant.String()).
				WithDetail("montant", in.Montant.String())
		}

		now := s.now().UTC()
		p := &Paiement{
			ID:           id.New(),
			FactureID:    f.ID,
			Montant:      in.Montant,
			Mode:         in.Mode,
			Reference:    in.Reference,
			DatePaiement: now,
			CreatedBy:    parseOptional(appctx.GetUserID(ctx)),
		}
		if in.Date != nil {
			p.DatePaiement = *in.Date
		}
		if err := s.repo.CreatePaiement(ctx, p); err != nil {
			return err
		}

		f.MontantPaye = f.MontantPaye.Add(in.Montant)
		f.MontantRestant = f.MontantRestant.Sub(in.Montant)
		to := f.Statut
		if f.MontantRestant.IsZero() {
			to = FacturePayee
			f.DatePaiement = &p.DatePaiement
		}
		return s.factureTransition(ctx, f, to, audit.ActionPayment, map[string]any{
			"montant":         in.Montant.String(),
			"montant_restant": f.MontantRestant.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "payment recorded", "facture_id", f.ID, "montant", in.Montant, "statut", f.Statut)
	return f, nil
}

func (s *Service) loadFacture(ctx context.Context, factureID id.ID, allowed ...string) (*Facture, error) {
	f, err := s.repo.GetFactureForUpdate(ctx, factureID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, security.CapFacturesWrite, f.Resource()); err != nil {
		return nil, err
	}
	if err := f.RequireStatus(allowed...); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) factureTransition(ctx context.Context, f *Facture, to string, action audit.Action, extra map[string]any) error {
	from := f.Statut
	f.Statut = to
	f.Touch()
	if err := s.repo.UpdateFacture(ctx, f); err != nil {
		return err
	}
	e := audit.Transition("facture", f.ID, action, from, to)
	for k, v := range extra {
		e.Changes[k] = v
	}
	return s.recordEntry(ctx, e)
}

// ListFactures returns a page of factures, scoped like commandes.
func (s *Service) ListFactures(ctx context.Context, f FactureFilter) (entity.List[Facture], error) {
	if scope := s.policy.AgenceScope(ctx); scope != "" {
		f.AgenceID = parseOptional(scope)
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.ListFactures(ctx, f)
	if err != nil {
		return entity.List[Facture]{}, fmt.Errorf("list factures: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

// FactureDetail is a facture with its payments.
type FactureDetail struct {
	Facture
	Paiements []Paiement `json:"paiements"`
}

// GetFacture returns a facture with its payments.
func (s *Service) GetFacture(ctx context.Context, factureID id.ID) (*FactureDetail, error) {
	f, err := s.repo.GetFacture(ctx, factureID)
	if err != nil {
		return nil, err
	}
	paiements, err := s.repo.Paiements(ctx, factureID)
	if err != nil {
		return nil, fmt.Errorf("list paiements: %w", err)
	}
	if paiements == nil {
		paiements = []Paiement{}
	}
	return &FactureDetail{Facture: *f, Paiements: paiements}, nil
}
