package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/numerator"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tx"
	"autoerp/internal/core/types"
	"autoerp/internal/domain"
	"autoerp/internal/domain/audit"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/stock"
	"autoerp/pkg/logger"
)

// Clients is the part of the client service used by orders.
type Clients interface {
	Get(ctx context.Context, clientID id.ID) (*client.Client, error)
	EnsureClient(ctx context.Context, c *client.Client) error
}

// Articles loads articles by id.
type Articles interface {
	GetMany(ctx context.Context, articleIDs []id.ID) ([]catalog.Article, error)
}

// Ledgers locks stock rows in the caller's transaction.
type Ledgers interface {
	Lock(ctx context.Context, keys ...stock.Key) (*stock.Ledger, error)
}

// Service runs the order pipeline.
type Service struct {
	repo      Repository
	clients   Clients
	articles  Articles
	stock     Ledgers
	numerator numerator.Generator
	audit     audit.Recorder
	policy    *security.Policy
	txManager tx.Manager
	now       func() time.Time
}

// Deps groups the collaborators of the order service.
type Deps struct {
	Repo      Repository
	Clients   Clients
	Articles  Articles
	Stock     Ledgers
	Numerator numerator.Generator
	Audit     audit.Recorder
	Policy    *security.Policy
	TxManager tx.Manager
}

func NewService(d Deps) *Service {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	return &Service{
		repo:      d.Repo,
		clients:   d.Clients,
		articles:  d.Articles,
		stock:     d.Stock,
		numerator: d.Numerator,
		audit:     d.Audit,
		policy:    d.Policy,
		txManager: d.TxManager,
		now:       time.Now,
	}
}

// Create registers a commande in brouillon. Stock of the agence must cover
// every line. A commande paid at creation reserves its stock immediately.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Commande, error) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if len(in.Lignes) == 0 {
		return nil, apperror.NewValidation("at least one line is required").WithDetail("field", "lignes")
	}
	if in.EncaissementType != "" && !slices.Contains(encaissementTypes, in.EncaissementType) {
		return nil, apperror.NewValidation("invalid encaissement_type").WithDetail("field", "encaissement_type")
	}

	now := s.now().UTC()
	c := &Commande{
		Base:                   entity.NewBase(),
		ClientID:               in.ClientID,
		DateCommande:           now,
		DateLivraisonSouhaitee: in.DateLivraisonSouhaitee,
		Statut:                 StatutBrouillon,
		Commentaire:            in.Commentaire,
		EncaissementMontant:    types.Zero(),
		EncaissementReference:  in.EncaissementReference,
		Source:                 SourceInterne,
		AgenceID:               in.AgenceID,
		CommercialID:           in.CommercialID,
		CreatedBy:              parseOptional(user.UserID),
	}
	if c.AgenceID == nil {
		c.AgenceID = parseOptional(user.AgenceID)
	}
	if c.AgenceID == nil {
		return nil, apperror.NewValidation("agence_id is required").WithCode("AGENCE_REQUIRED")
	}
	if user.Role == string(security.RoleCommercial) {
		c.CommercialID = parseOptional(user.UserID)
	}

	cl, err := s.clients.Get(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if !cl.IsActive && !cl.IsProspect {
		return nil, apperror.NewBusinessRule("CLIENT_INACTIVE", "client is inactive")
	}
	if c.CommercialID == nil {
		c.CommercialID = cl.CommercialID
	}

	if err := s.buildLines(ctx, c, in.Lignes, func(a *catalog.Article) types.Money { return a.PrixStandard }); err != nil {
		return nil, err
	}
	if in.EncaissementType != "" {
		c.EncaissementType = &in.EncaissementType
		c.IsEncaisse = true
		c.DateEncaissement = &now
		c.EncaissementMontant = in.EncaissementMontant
		if c.EncaissementMontant.IsZero() {
			c.EncaissementMontant = c.MontantTTC
		}
	}

	err = domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		ledger, err := s.stock.Lock(ctx, stockKeys(c)...)
		if err != nil {
			return err
		}
		for art, q := range c.Quantities() {
			if err := ledger.Check(stock.Key{ArticleID: art, AgenceID: *c.AgenceID}, q); err != nil {
				return err
			}
		}
		if c.IsEncaisse {
			if err := reserveAll(ledger, c); err != nil {
				return err
			}
			if err := s.clients.EnsureClient(ctx, cl); err != nil {
				return fmt.Errorf("convert prospect: %w", err)
			}
		}

		if c.Numero, err = s.numerator.NextNumber(ctx, CommandeNumbering, now); err != nil {
			return fmt.Errorf("commande number: %w", err)
		}
		if err := s.repo.Create(ctx, c); err != nil {
			return err
		}
		if err := ledger.Flush(ctx); err != nil {
			return err
		}
		return s.record(ctx, "commande", c.ID, audit.ActionCreate, map[string]any{
			"numero": c.Numero, "montant_ttc": c.MontantTTC.String(), "is_encaisse": c.IsEncaisse,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "commande created", "commande_id", c.ID, "numero", c.Numero, "montant_ttc", c.MontantTTC)
	return c, nil
}

// CreatePortal registers a reseller order in brouillon at public prices,
// without discount. Stock is checked when the commande is validated.
func (s *Service) CreatePortal(ctx context.Context, clientID id.ID, items []LigneInput) (*Commande, error) {
	if len(items) == 0 {
		return nil, apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	cl, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &Commande{
		Base:                entity.NewBase(),
		ClientID:            clientID,
		CommercialID:        cl.CommercialID,
		AgenceID:            cl.AgenceID,
		DateCommande:        now,
		Statut:              StatutBrouillon,
		EncaissementMontant: types.Zero(),
		Source:              SourcePortail,
	}
	for i := range items {
		items[i].PrixUnitaire = nil
		items[i].RemisePourcentage = types.Zero()
	}
	err = s.buildLines(ctx, c, items, func(a *catalog.Article) types.Money { return a.PrixPublic })
	if apperror.HasCode(err, "ARTICLE_NOT_FOUND") {
		return nil, apperror.NewValidation("some articles are unavailable").WithCode("ARTICLES_NOT_FOUND").WithCause(err)
	}
	if err != nil {
		return nil, err
	}

	err = domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if c.Numero, err = s.numerator.NextNumber(ctx, CommandeNumbering, now); err != nil {
			return fmt.Errorf("commande number: %w", err)
		}
		if err := s.repo.Create(ctx, c); err != nil {
			return err
		}
		return s.record(ctx, "commande", c.ID, audit.ActionCreate, map[string]any{"numero": c.Numero, "source": SourcePortail})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "portal commande created", "commande_id", c.ID, "numero", c.Numero, "client_id", clientID)
	return c, nil
}

// buildLines resolves articles, prices and amounts of the lines of c.
func (s *Service) buildLines(ctx context.Context, c *Commande, items []LigneInput, defaultPrice func(*catalog.Article) types.Money) error {
	ids := make([]id.ID, 0, len(items))
	for _, it := range items {
		if !slices.Contains(ids, it.ArticleID) {
			ids = append(ids, it.ArticleID)
		}
	}
	found, err := s.articles.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("load articles: %w", err)
	}
	byID := make(map[id.ID]*catalog.Article, len(found))
	for i := range found {
		if found[i].IsActive {
			byID[found[i].ID] = &found[i]
		}
	}

	c.Lignes = make([]Ligne, 0, len(items))
	for i, it := range items {
		art, ok := byID[it.ArticleID]
		if !ok {
			return apperror.NewNotFound("article", it.ArticleID.String()).WithDetail("index", i)
		}
		l := Ligne{
			ID:                id.New(),
			CommandeID:        c.ID,
			ArticleID:         it.ArticleID,
			Quantite:          it.Quantite,
			PrixUnitaire:      defaultPrice(art),
			RemisePourcentage: it.RemisePourcentage,
			Commentaire:       it.Commentaire,
			SKU:               art.SKU,
			Libelle:           art.Libelle,
		}
		if it.PrixUnitaire != nil {
			l.PrixUnitaire = *it.PrixUnitaire
		}
		if err := l.Compute(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("index", i)
			}
			return err
		}
		c.Lignes = append(c.Lignes, l)
	}
	c.ApplyTotals()
	return nil
}

// Valider reserves the stock of every line and moves the commande to validee.
// Either every line is reserved or none is.
func (s *Service) Valider(ctx context.Context, commandeID id.ID) (*Commande, error) {
	var c *Commande
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if c, err = s.load(ctx, commandeID, security.CapCommandesValidate, StatutBrouillon); err != nil {
			return err
		}
		if c.AgenceID == nil {
			c.AgenceID = parseOptional(appctx.GetUser(ctx).AgenceID)
			if c.AgenceID == nil {
				return apperror.NewBusinessRule("AGENCE_REQUIRED", "the commande has no agence to reserve stock from")
			}
		}

		ledger, err := s.stock.Lock(ctx, stockKeys(c)...)
		if err != nil {
			return err
		}
		if !c.StockReserve {
			if err := reserveAll(ledger, c); err != nil {
				return err
			}
		}
		return s.transition(ctx, c, ledger, StatutValidee, audit.ActionValidate)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "commande validated", "commande_id", c.ID, "numero", c.Numero)
	return c, nil
}

// Livrer creates the bon de livraison, takes the reserved goods out of stock
// and moves the commande to livree.
func (s *Service) Livrer(ctx context.Context, commandeID id.ID, in LivrerInput) (*Commande, error) {
	var c *Commande
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if c, err = s.load(ctx, commandeID, security.CapCommandesDeliver, StatutValidee); err != nil {
			return err
		}

		now := s.now().UTC()
		bl := &BonLivraison{
			ID:            id.New(),
			CommandeID:    c.ID,
			DateLivraison: now,
			Statut:        "livre",
			Commentaire:   in.Commentaire,
			CreatedBy:     parseOptional(appctx.GetUserID(ctx)),
			CreatedAt:     now,
		}
		if in.DateLivraison != nil {
			bl.DateLivraison = *in.DateLivraison
		}
		if bl.Numero, err = s.numerator.NextNumber(ctx, BLNumbering, now); err != nil {
			return fmt.Errorf("bl number: %w", err)
		}

		ledger, err := s.stock.Lock(ctx, stockKeys(c)...)
		if err != nil {
			return err
		}
		for _, l := range c.Lignes {
			k := stock.Key{ArticleID: l.ArticleID, AgenceID: *c.AgenceID}
			if err := ledger.Consume(k, l.Quantite, stock.Movement{
				Type:        stock.TypeVente,
				Reference:   bl.Numero,
				ReferenceID: &bl.ID,
				Commentaire: "Livraison " + c.Numero,
			}); err != nil {
				return err
			}
		}
		if err := s.repo.CreateBL(ctx, bl); err != nil {
			return err
		}
		c.BLID = &bl.ID
		c.BL = bl
		c.StockReserve = false
		return s.transition(ctx, c, ledger, StatutLivree, audit.ActionDeliver)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "commande delivered", "commande_id", c.ID, "numero", c.Numero, "bl", c.BL.Numero)
	return c, nil
}

// Facturer issues the facture of a delivered commande.
func (s *Service) Facturer(ctx context.Context, commandeID id.ID) (*Commande, error) {
	var c *Commande
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if c, err = s.load(ctx, commandeID, security.CapCommandesInvoice, StatutLivree); err != nil {
			return err
		}

		now := s.now().UTC()
		f := &Facture{
			Base:           entity.NewBase(),
			CommandeID:     c.ID,
			ClientID:       c.ClientID,
			CommercialID:   c.CommercialID,
			AgenceID:       c.AgenceID,
			DateFacture:    now,
			MontantHT:      c.MontantHT,
			MontantTVA:     c.MontantTVA,
			MontantTTC:     c.MontantTTC,
			MontantPaye:    types.Zero(),
			MontantRestant: c.MontantTTC,
			Statut:         FactureBrouillon,
		}
		if f.Numero, err = s.numerator.NextNumber(ctx, FactureNumbering, now); err != nil {
			return fmt.Errorf("facture number: %w", err)
		}
		if err := s.repo.CreateFacture(ctx, f); err != nil {
			return err
		}
		c.FactureID = &f.ID
		c.Facture = f
		if c.BLID != nil {
			if c.BL, err = s.repo.GetBL(ctx, *c.BLID); err != nil {
				return fmt.Errorf("load bl: %w", err)
			}
		}
		return s.transition(ctx, c, nil, StatutFacturee, audit.ActionInvoice)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "commande invoiced", "commande_id", c.ID, "facture", c.Facture.Numero)
	return c, nil
}

// Annuler cancels a commande in brouillon or validee, releasing reserved stock.
func (s *Service) Annuler(ctx context.Context, commandeID id.ID, motif string) (*Commande, error) {
	var c *Commande
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if c, err = s.load(ctx, commandeID, security.CapCommandesCancel, StatutBrouillon, StatutValidee); err != nil {
			return err
		}

		var ledger *stock.Ledger
		if c.StockReserve {
			if ledger, err = s.stock.Lock(ctx, stockKeys(c)...); err != nil {
				return err
			}
			for _, l := range c.Lignes {
				if err := ledger.Release(stock.Key{ArticleID: l.ArticleID, AgenceID: *c.AgenceID}, l.Quantite); err != nil {
					return err
				}
			}
			c.StockReserve = false
		}
		c.MotifAnnulation = motif
		return s.transition(ctx, c, ledger, StatutAnnulee, audit.ActionCancel)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "commande cancelled", "commande_id", c.ID, "numero", c.Numero, "motif", motif)
	return c, nil
}

// load reads the commande under lock, checks the capability against it and its status.
func (s *Service) load(ctx context.Context, commandeID id.ID, capability security.Capability, allowed ...string) (*Commande, error) {
	c, err := s.repo.GetForUpdate(ctx, commandeID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, capability, c.Resource()); err != nil {
		return nil, err
	}
	if err := c.RequireStatus(allowed...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) transition(ctx context.Context, c *Commande, ledger *stock.Ledger, to string, action audit.Action) error {
	from := c.Statut
	c.Statut = to
	c.Touch()
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	if ledger != nil {
		if err := ledger.Flush(ctx); err != nil {
			return err
		}
	}
	e := audit.Transition("commande", c.ID, action, from, to)
	return s.recordEntry(ctx, e)
}

func (s *Service) record(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	return s.recordEntry(ctx, audit.Entry{EntityType: entityType, EntityID: entityID, Action: action, Changes: changes})
}

func (s *Service) recordEntry(ctx context.Context, e audit.Entry) error {
	audit.Fill(ctx, &e)
	if err := s.audit.Record(ctx, e); err != nil {
		return fmt.Errorf("audit %s %s: %w", e.EntityType, e.Action, err)
	}
	return nil
}

// List returns a page of commandes, restricted to the user's agence unless
// the user sees every agence.
func (s *Service) List(ctx context.Context, f Filter) (entity.List[Commande], error) {
	if scope := s.policy.AgenceScope(ctx); scope != "" {
		f.AgenceID = parseOptional(scope)
	}
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f Filter) (entity.List[Commande], error) {
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return entity.List[Commande]{}, fmt.Errorf("list commandes: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

// Get returns a commande with its lines, bon de livraison and facture.
func (s *Service) Get(ctx context.Context, commandeID id.ID) (*Commande, error) {
	c, err := s.repo.GetByID(ctx, commandeID)
	if err != nil {
		return nil, err
	}
	if err := s.attach(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) attach(ctx context.Context, c *Commande) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lines, err := s.repo.Lignes(gctx, c.ID)
		c.Lignes = lines
		return err
	})
	if c.BLID != nil {
		g.Go(func() error {
			bl, err := s.repo.GetBL(gctx, *c.BLID)
			c.BL = bl
			return err
		})
	}
	if c.FactureID != nil {
		g.Go(func() error {
			f, err := s.repo.GetFacture(gctx, *c.FactureID)
			c.Facture = f
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load commande %s: %w", c.Numero, err)
	}
	return nil
}

// ForClient lists the non-draft commandes of a client.
func (s *Service) ForClient(ctx context.Context, clientID id.ID, page entity.Page) (entity.List[Commande], error) {
	return s.list(ctx, Filter{Page: page, ClientID: &clientID, ExcludeBrouillon: true})
}

// Track returns the public summary of the commande numero.
func (s *Service) Track(ctx context.Context, numero string) (*Tracking, error) {
	c, err := s.repo.GetByNumero(ctx, numero)
	if err != nil {
		return nil, err
	}
	if err := s.attach(ctx, c); err != nil {
		return nil, err
	}
	t := &Tracking{
		Numero:       c.Numero,
		Statut:       c.Statut,
		DateCommande: c.DateCommande,
		MontantHT:    c.MontantHT,
		MontantTVA:   c.MontantTVA,
		MontantTTC:   c.MontantTTC,
		Lignes:       c.Lignes,
	}
	if c.BL != nil {
		t.NumeroBL = c.BL.Numero
		t.DateLivraison = &c.BL.DateLivraison
	}
	if c.Facture != nil {
		t.NumeroFacture = c.Facture.Numero
	}
	return t, nil
}

func stockKeys(c *Commande) []stock.Key {
	keys := make([]stock.Key, 0, len(c.Lignes))
	for _, l := range c.Lignes {
		keys = append(keys, stock.Key{ArticleID: l.ArticleID, AgenceID: *c.AgenceID})
	}
	return keys
}

func reserveAll(ledger *stock.Ledger, c *Commande) error {
	for _, l := range c.Lignes {
		if err := ledger.Reserve(stock.Key{ArticleID: l.ArticleID, AgenceID: *c.AgenceID}, l.Quantite); err != nil {
			return err
		}
	}
	c.StockReserve = true
	return nil
}

func parseOptional(s string) *id.ID {
	v, err := id.Parse(s)
	if err != nil || id.IsNil(v) {
		return nil
	}
	return &v
}
