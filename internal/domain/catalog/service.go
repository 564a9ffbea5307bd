package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/tx"
	"autoerp/internal/domain"
	"autoerp/internal/domain/stock"
	"autoerp/pkg/logger"
)

// StockLedger is the part of the stock service the catalog uses.
type StockLedger interface {
	InitArticle(ctx context.Context, articleID id.ID) error
	HasMovements(ctx context.Context, articleID id.ID) (bool, error)
	Where(ctx context.Context, articleID id.ID) (*stock.Location, error)
	Movements(ctx context.Context, f stock.MovementFilter) (entity.List[stock.Movement], error)
}

// Service provides article operations.
type Service struct {
	repo      Repository
	stock     StockLedger
	txManager tx.Manager
}

func NewService(repo Repository, ledger StockLedger, txManager tx.Manager) *Service {
	return &Service{repo: repo, stock: ledger, txManager: txManager}
}

// List returns a page of articles.
func (s *Service) List(ctx context.Context, f Filter) (entity.List[Article], error) {
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return entity.List[Article]{}, fmt.Errorf("list articles: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

// Get returns an article with its stock in every agence.
func (s *Service) Get(ctx context.Context, articleID id.ID) (*Detail, error) {
	var (
		article *Article
		loc     *stock.Location
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		article, err = s.repo.GetByID(gctx, articleID)
		return err
	})
	g.Go(func() error {
		var err error
		loc, err = s.stock.Where(gctx, articleID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Detail{Article: *article, Stock: loc}, nil
}

// GetMany returns the articles of ids, in no particular order.
func (s *Service) GetMany(ctx context.Context, articleIDs []id.ID) ([]Article, error) {
	return s.repo.GetByIDs(ctx, articleIDs)
}

// Create adds an article and opens a zero stock row in every active depot.
func (s *Service) Create(ctx context.Context, in Input) (*Article, error) {
	a := &Article{Base: entity.NewBase(), IsActive: true}
	in.apply(a)
	if in.CMP == nil {
		a.CMP = a.PrixStandard
	}
	if err := a.Validate(ctx); err != nil {
		return nil, err
	}

	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		if err := s.ensureSKUFree(ctx, a.SKU, nil); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		return s.stock.InitArticle(ctx, a.ID)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "article created", "article_id", a.ID, "sku", a.SKU)
	return a, nil
}

// Update replaces the writable fields of an article.
func (s *Service) Update(ctx context.Context, articleID id.ID, in Input) (*Article, error) {
	var a *Article
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if a, err = s.repo.GetByID(ctx, articleID); err != nil {
			return err
		}
		in.apply(a)
		if err := a.Validate(ctx); err != nil {
			return err
		}
		if err := s.ensureSKUFree(ctx, a.SKU, &a.ID); err != nil {
			return err
		}
		a.Touch()
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Delete deactivates an article that never moved.
func (s *Service) Delete(ctx context.Context, articleID id.ID) error {
	return domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, articleID)
		if err != nil {
			return err
		}
		moved, err := s.stock.HasMovements(ctx, articleID)
		if err != nil {
			return fmt.Errorf("check movements: %w", err)
		}
		if moved {
			return apperror.NewBusinessRule("ARTICLE_HAS_MOVEMENTS", "article has stock movements and cannot be deleted").
				WithDetail("article_id", articleID.String())
		}
		a.IsActive = false
		a.Touch()
		return s.repo.Update(ctx, a)
	})
}

// Familles returns the distinct famille labels.
func (s *Service) Familles(ctx context.Context) ([]string, error) {
	labels, err := s.repo.Familles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list familles: %w", err)
	}
	return uniqueLabels(labels), nil
}

// SousFamilles returns the distinct sous-famille labels, within famille when set.
func (s *Service) SousFamilles(ctx context.Context, famille string) ([]string, error) {
	labels, err := s.repo.SousFamilles(ctx, NormalizeLabel(famille))
	if err != nil {
		return nil, fmt.Errorf("list sous-familles: %w", err)
	}
	return uniqueLabels(labels), nil
}

// Movements lists the ledger entries of an article.
func (s *Service) Movements(ctx context.Context, articleID id.ID, f stock.MovementFilter) (entity.List[stock.Movement], error) {
	if _, err := s.repo.GetByID(ctx, articleID); err != nil {
		return entity.List[stock.Movement]{}, err
	}
	f.ArticleID = &articleID
	return s.stock.Movements(ctx, f)
}

func (s *Service) ensureSKUFree(ctx context.Context, sku string, exclude *id.ID) error {
	exists, err := s.repo.ExistsBySKU(ctx, sku, exclude)
	if err != nil {
		return fmt.Errorf("check sku: %w", err)
	}
	if exists {
		return apperror.NewDuplicate("article", "sku", sku).WithCode("DUPLICATE_SKU")
	}
	return nil
}
