package stock

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
	"autoerp/internal/core/types"
	"autoerp/internal/domain"
	"autoerp/pkg/logger"
)

// Reference series of ledger operations that are not documents.
var (
	TransferNumbering  = numerator.Config{Prefix: "TRF", PadWidth: 4, ResetPeriod: numerator.ResetMonth, Separator: "-"}
	InventoryNumbering = numerator.Config{Prefix: "INV", PadWidth: 4, ResetPeriod: numerator.ResetMonth, Separator: "-"}
)

// Service provides the stock ledger operations.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	policy    *security.Policy
	txManager tx.Manager
	now       func() time.Time
}

func NewService(repo Repository, gen numerator.Generator, policy *security.Policy, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		numerator: gen,
		policy:    policy,
		txManager: txManager,
		now:       time.Now,
	}
}

// Lock locks the rows of keys for the transaction in ctx, creating missing
// ones at zero first. Orders and BCG call it inside their own transaction
// and Flush the ledger before commit.
func (s *Service) Lock(ctx context.Context, keys ...Key) (*Ledger, error) {
	return newLedger(ctx, s.repo, keys, true, s.now().UTC(), s.userID(ctx))
}

// lockExisting locks only the rows that already exist.
func (s *Service) lockExisting(ctx context.Context, keys ...Key) (*Ledger, error) {
	return newLedger(ctx, s.repo, keys, false, s.now().UTC(), s.userID(ctx))
}

func (s *Service) userID(ctx context.Context) *id.ID {
	if uid, err := id.Parse(appctx.GetUserID(ctx)); err == nil {
		return &uid
	}
	return nil
}

// Transfer moves stock of one article between two agences.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if in.Quantite < 1 {
		return nil, apperror.NewValidation("quantite must be at least 1").WithDetail("field", "quantite")
	}
	if in.FromAgence == in.ToAgence {
		return nil, apperror.NewValidation("source and destination agences must differ").WithCode("SAME_AGENCE")
	}
	if err := s.policy.Authorize(ctx, security.CapStockTransfer, map[string]any{
		"agence_id":    in.FromAgence.String(),
		"to_agence_id": in.ToAgence.String(),
	}); err != nil {
		return nil, err
	}

	from := Key{ArticleID: in.ArticleID, AgenceID: in.FromAgence}
	to := Key{ArticleID: in.ArticleID, AgenceID: in.ToAgence}

	result := &TransferResult{}
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		ledger, err := s.Lock(ctx, from, to)
		if err != nil {
			return err
		}
		if err := ledger.Check(from, in.Quantite); err != nil {
			return err
		}

		ref, err := s.numerator.NextNumber(ctx, TransferNumbering, s.now())
		if err != nil {
			return fmt.Errorf("transfer reference: %w", err)
		}
		m := Movement{Type: TypeTransfert, Reference: ref, Commentaire: in.Commentaire}
		if err := ledger.Move(from, -in.Quantite, m); err != nil {
			return err
		}
		if err := ledger.Move(to, in.Quantite, m); err != nil {
			return err
		}

		result.Reference = ref
		result.Movements = ledger.Movements()
		if err := ledger.Flush(ctx); err != nil {
			return err
		}
		result.From, _ = ledger.Get(from)
		result.To, _ = ledger.Get(to)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock transferred",
		"reference", result.Reference,
		"article_id", in.ArticleID,
		"from", in.FromAgence,
		"to", in.ToAgence,
		"quantite", in.Quantite,
	)
	return result, nil
}

// AdjustInventory overwrites counted quantities of an agence. Every item is
// applied or none is.
func (s *Service) AdjustInventory(ctx context.Context, agenceID id.ID, items []InventoryItem) (*InventoryResult, error) {
	if len(items) == 0 {
		return nil, apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	keys := make([]Key, 0, len(items))
	seen := make(map[id.ID]bool, len(items))
	for i, it := range items {
		if it.Counted < 0 {
			return nil, apperror.NewValidation("counted quantity cannot be negative").WithDetail("index", i)
		}
		if seen[it.ArticleID] {
			return nil, apperror.NewValidation("article listed twice").WithDetail("article_id", it.ArticleID.String())
		}
		seen[it.ArticleID] = true
		keys = append(keys, Key{ArticleID: it.ArticleID, AgenceID: agenceID})
	}
	if err := s.policy.Authorize(ctx, security.CapStockInventory, map[string]any{"agence_id": agenceID.String()}); err != nil {
		return nil, err
	}

	result := &InventoryResult{AgenceID: agenceID, Lines: make([]InventoryLine, 0, len(items))}
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		ledger, err := s.lockExisting(ctx, keys...)
		if err != nil {
			return err
		}
		ref, err := s.numerator.NextNumber(ctx, InventoryNumbering, s.now())
		if err != nil {
			return fmt.Errorf("inventory reference: %w", err)
		}
		result.Reference = ref

		for _, it := range items {
			k := Key{ArticleID: it.ArticleID, AgenceID: agenceID}
			old, ecart, err := ledger.Set(k, it.Counted, Movement{
				Type:        TypeInventaire,
				Reference:   ref,
				Commentaire: it.Commentaire,
			})
			if err != nil {
				return err
			}
			art := ledger.Article(it.ArticleID)
			result.Lines = append(result.Lines, InventoryLine{
				ArticleID:        it.ArticleID,
				Libelle:          art.Libelle,
				QuantiteAncienne: old,
				QuantiteNouvelle: it.Counted,
				Ecart:            ecart,
				ValeurEcart:      types.Round2(art.CMP.Mul(types.Qty(ecart))),
			})
		}
		return ledger.Flush(ctx)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory adjusted", "reference", result.Reference, "agence_id", agenceID, "items", len(items))
	return result, nil
}

// Where returns the stock of an article in every agence with totals.
func (s *Service) Where(ctx context.Context, articleID id.ID) (*Location, error) {
	rows, err := s.repo.ByArticle(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("stock by article: %w", err)
	}
	loc := &Location{ArticleID: articleID, Rows: rows, TotalValeur: types.Zero()}
	if loc.Rows == nil {
		loc.Rows = []StockView{}
	}
	for _, r := range rows {
		loc.TotalQuantite += r.Quantite
		loc.TotalReservee += r.QuantiteReservee
		loc.TotalValeur = loc.TotalValeur.Add(r.ValeurStock)
	}
	return loc, nil
}

// BelowThreshold lists rows at or under the article seuil_min. Users
// restricted to an agence only see their own.
func (s *Service) BelowThreshold(ctx context.Context, agenceID *id.ID) ([]StockView, error) {
	if scope := s.policy.AgenceScope(ctx); scope != "" {
		aid, err := id.Parse(scope)
		if err != nil {
			return nil, apperror.NewForbidden("user has no agence")
		}
		agenceID = &aid
	}
	rows, err := s.repo.BelowThreshold(ctx, agenceID)
	if err != nil {
		return nil, fmt.Errorf("stock below threshold: %w", err)
	}
	if rows == nil {
		rows = []StockView{}
	}
	return rows, nil
}

// Movements lists ledger entries, newest first.
func (s *Service) Movements(ctx context.Context, f MovementFilter) (entity.List[Movement], error) {
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.ListMovements(ctx, f)
	if err != nil {
		return entity.List[Movement]{}, fmt.Errorf("list movements: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

// HasMovements reports whether an article ever moved.
func (s *Service) HasMovements(ctx context.Context, articleID id.ID) (bool, error) {
	return s.repo.HasMovements(ctx, articleID)
}

// InitArticle creates the zero rows of a new article in every active depot.
func (s *Service) InitArticle(ctx context.Context, articleID id.ID) error {
	n, err := s.repo.InitArticle(ctx, articleID)
	if err != nil {
		return fmt.Errorf("init stock rows: %w", err)
	}
	logger.Debug(ctx, "stock rows initialized", "article_id", articleID, "rows", n)
	return nil
}
