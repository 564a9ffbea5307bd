package bcg

import (
	"context"
	"fmt"
	"time"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/numerator"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tx"
	"autoerp/internal/domain"
	"autoerp/internal/domain/audit"
	"autoerp/internal/domain/identity"
	"autoerp/internal/domain/stock"
	"autoerp/pkg/logger"
)

// Agences resolves depots and vehicles.
type Agences interface {
	GetAgence(ctx context.Context, agenceID id.ID) (*identity.Agence, error)
}

// Ledgers locks stock rows in the caller's transaction.
type Ledgers interface {
	Lock(ctx context.Context, keys ...stock.Key) (*stock.Ledger, error)
}

type Service struct {
	repo      Repository
	agences   Agences
	stock     Ledgers
	numerator numerator.Generator
	audit     audit.Recorder
	policy    *security.Policy
	txManager tx.Manager
	now       func() time.Time
}

func NewService(repo Repository, agences Agences, ledgers Ledgers, gen numerator.Generator, rec audit.Recorder, policy *security.Policy, txManager tx.Manager) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		agences:   agences,
		stock:     ledgers,
		numerator: gen,
		audit:     rec,
		policy:    policy,
		txManager: txManager,
		now:       time.Now,
	}
}

// Create loads a vehicle: every line moves from the depot to the vehicle
// with a pair of BCG movements. Nothing moves unless every line fits.
func (s *Service) Create(ctx context.Context, in CreateInput) (*BCG, error) {
	if len(in.Lignes) == 0 {
		return nil, apperror.NewValidation("at least one line is required").WithDetail("field", "lignes")
	}
	seen := make(map[id.ID]bool, len(in.Lignes))
	for i, l := range in.Lignes {
		if l.Quantite < 1 {
			return nil, apperror.NewValidation("quantite must be at least 1").WithDetail("index", i)
		}
		if seen[l.ArticleID] {
			return nil, apperror.NewValidation("article listed twice").WithCode("DUPLICATE_ARTICLE").WithDetail("index", i)
		}
		seen[l.ArticleID] = true
	}

	depot, err := s.agences.GetAgence(ctx, in.DepotSourceID)
	if apperror.IsNotFound(err) || (err == nil && (!depot.IsDepot || !depot.IsActive)) {
		return nil, apperror.NewValidation("source agence must be an active depot").WithCode("INVALID_SOURCE_AGENCE")
	}
	if err != nil {
		return nil, err
	}
	vehicule, err := s.agences.GetAgence(ctx, in.VehiculeID)
	if apperror.IsNotFound(err) || (err == nil && (!vehicule.IsVehicule || !vehicule.IsActive)) {
		return nil, apperror.NewValidation("destination agence must be an active vehicle").WithCode("INVALID_DESTINATION_AGENCE")
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	b := &BCG{
		Base:          entity.NewBase(),
		DepotSourceID: depot.ID,
		VehiculeID:    vehicule.ID,
		CommercialID:  in.CommercialID,
		Statut:        StatutCharge,
		DateCharge:    &now,
		Commentaire:   in.Commentaire,
		CreatedBy:     parseOptional(appctx.GetUserID(ctx)),
	}
	if b.CommercialID == nil {
		b.CommercialID = vehicule.CommercialID
	}
	if err := s.policy.Authorize(ctx, security.CapBCGWrite, b.Resource()); err != nil {
		return nil, err
	}

	err = domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		keys := make([]stock.Key, 0, 2*len(in.Lignes))
		for _, l := range in.Lignes {
			keys = append(keys, stock.Key{ArticleID: l.ArticleID, AgenceID: depot.ID}, stock.Key{ArticleID: l.ArticleID, AgenceID: vehicule.ID})
		}
		ledger, err := s.stock.Lock(ctx, keys...)
		if err != nil {
			return err
		}
		if b.Numero, err = s.numerator.NextNumber(ctx, Numbering, now); err != nil {
			return fmt.Errorf("bcg number: %w", err)
		}

		toVehicule := stock.Movement{Type: stock.TypeBCG, Reference: b.Numero, ReferenceID: &b.ID, Commentaire: "BCG vers vehicule " + vehicule.Nom}
		fromDepot := stock.Movement{Type: stock.TypeBCG, Reference: b.Numero, ReferenceID: &b.ID, Commentaire: "BCG depuis depot " + depot.Nom}
		b.Lignes = make([]Ligne, 0, len(in.Lignes))
		for _, l := range in.Lignes {
			if err := ledger.Move(stock.Key{ArticleID: l.ArticleID, AgenceID: depot.ID}, -l.Quantite, toVehicule); err != nil {
				return err
			}
			if err := ledger.Move(stock.Key{ArticleID: l.ArticleID, AgenceID: vehicule.ID}, l.Quantite, fromDepot); err != nil {
				return err
			}
			b.Lignes = append(b.Lignes, Ligne{
				ID:              id.New(),
				BCGID:           b.ID,
				ArticleID:       l.ArticleID,
				QuantiteChargee: l.Quantite,
				Commentaire:     l.Commentaire,
				Libelle:         ledger.Article(l.ArticleID).Libelle,
			})
		}

		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}
		if err := ledger.Flush(ctx); err != nil {
			return err
		}
		return s.record(ctx, audit.Entry{EntityType: "bcg", EntityID: b.ID, Action: audit.ActionCreate, Changes: map[string]any{
			"numero": b.Numero, "depot_source_id": depot.ID.String(), "vehicule_id": vehicule.ID.String(), "lignes": len(b.Lignes),
		}})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "bcg loaded", "bcg_id", b.ID, "numero", b.Numero, "vehicule", vehicule.Code, "lignes", len(b.Lignes))
	return b, nil
}

// Retour closes a loaded BCG. Each line must account for its whole load:
// returned units go back to the depot as BRT, sold units leave the vehicle as VENTE.
func (s *Service) Retour(ctx context.Context, bcgID id.ID, in RetourInput) (*BCG, error) {
	reports := make(map[id.ID]RetourLigne, len(in.Lignes))
	for i, r := range in.Lignes {
		if r.QuantiteVendue < 0 || r.QuantiteRetournee < 0 {
			return nil, apperror.NewValidation("quantities cannot be negative").WithDetail("index", i)
		}
		if _, dup := reports[r.ArticleID]; dup {
			return nil, apperror.NewValidation("article listed twice").WithCode("DUPLICATE_ARTICLE").WithDetail("index", i)
		}
		reports[r.ArticleID] = r
	}

	var b *BCG
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if b, err = s.repo.GetForUpdate(ctx, bcgID); err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.CapBCGWrite, b.Resource()); err != nil {
			return err
		}
		if err := b.RequireStatus(StatutCharge); err != nil {
			return err
		}
		if err := reconcile(b.Lignes, reports); err != nil {
			return err
		}

		keys := make([]stock.Key, 0, 2*len(b.Lignes))
		for _, l := range b.Lignes {
			keys = append(keys, stock.Key{ArticleID: l.ArticleID, AgenceID: b.DepotSourceID}, stock.Key{ArticleID: l.ArticleID, AgenceID: b.VehiculeID})
		}
		ledger, err := s.stock.Lock(ctx, keys...)
		if err != nil {
			return err
		}

		brt := stock.Movement{Type: stock.TypeBRT, Reference: b.Numero, ReferenceID: &b.ID, Commentaire: "Retour " + b.Numero}
		vente := stock.Movement{Type: stock.TypeVente, Reference: b.Numero, ReferenceID: &b.ID, Commentaire: "Vente tournee " + b.Numero}
		for i := range b.Lignes {
			l := &b.Lignes[i]
			r := reports[l.ArticleID]
			vehicule := stock.Key{ArticleID: l.ArticleID, AgenceID: b.VehiculeID}
			if r.QuantiteRetournee > 0 {
				if err := ledger.Move(vehicule, -r.QuantiteRetournee, brt); err != nil {
					return err
				}
				if err := ledger.Move(stock.Key{ArticleID: l.ArticleID, AgenceID: b.DepotSourceID}, r.QuantiteRetournee, brt); err != nil {
					return err
				}
			}
			if r.QuantiteVendue > 0 {
				if err := ledger.Move(vehicule, -r.QuantiteVendue, vente); err != nil {
					return err
				}
			}
			l.QuantiteVendue = r.QuantiteVendue
			l.QuantiteRetournee = r.QuantiteRetournee
		}

		now := s.now().UTC()
		b.DateRetour = &now
		b.Statut = StatutRetourne
		if in.Commentaire != "" {
			b.Commentaire = in.Commentaire
		}
		b.Touch()
		if err := s.repo.UpdateLignes(ctx, b.Lignes); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		if err := ledger.Flush(ctx); err != nil {
			return err
		}
		return s.record(ctx, audit.Transition("bcg", b.ID, audit.ActionReturn, StatutCharge, StatutRetourne))
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "bcg returned", "bcg_id", b.ID, "numero", b.Numero)
	return b, nil
}

// reconcile checks vendue + retournee == chargee for every loaded line.
func reconcile(lines []Ligne, reports map[id.ID]RetourLigne) error {
	loaded := make(map[id.ID]bool, len(lines))
	for _, l := range lines {
		loaded[l.ArticleID] = true
		r := reports[l.ArticleID]
		if r.QuantiteVendue+r.QuantiteRetournee != l.QuantiteChargee {
			return apperror.NewBusinessRule("BCG_QUANTITY_MISMATCH", "sold and returned quantities must add up to the loaded quantity").
				WithDetail("article_id", l.ArticleID.String()).
				WithDetail("quantite_chargee", l.QuantiteChargee).
				WithDetail("quantite_vendue", r.QuantiteVendue).
				WithDetail("quantite_retournee", r.QuantiteRetournee)
		}
	}
	for aid := range reports {
		if !loaded[aid] {
			return apperror.NewValidation("article is not part of this BCG").WithCode("ARTICLE_NOT_IN_BCG").WithDetail("article_id", aid.String())
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, e audit.Entry) error {
	audit.Fill(ctx, &e)
	if err := s.audit.Record(ctx, e); err != nil {
		return fmt.Errorf("audit bcg %s: %w", e.Action, err)
	}
	return nil
}

// List returns a page of BCGs. Users bound to an agence only see the BCGs
// loaded from it.
func (s *Service) List(ctx context.Context, f Filter) (entity.List[BCG], error) {
	if scope := s.policy.AgenceScope(ctx); scope != "" {
		f.DepotID = parseOptional(scope)
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return entity.List[BCG]{}, fmt.Errorf("list bcg: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

// Get returns a BCG with its lines.
func (s *Service) Get(ctx context.Context, bcgID id.ID) (*BCG, error) {
	b, err := s.repo.GetByID(ctx, bcgID)
	if err != nil {
		return nil, err
	}
	if b.Lignes, err = s.repo.Lignes(ctx, bcgID); err != nil {
		return nil, fmt.Errorf("load bcg lines: %w", err)
	}
	return b, nil
}

func parseOptional(s string) *id.ID {
	v, err := id.Parse(s)
	if err != nil || id.IsNil(v) {
		return nil
	}
	return &v
}
