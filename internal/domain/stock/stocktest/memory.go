// Package stocktest provides an in-memory stock.Repository for service tests.
package stocktest

import (
	"context"
	"slices"
	"sort"
	"sync"

	"autoerp/internal/core/id"
	"autoerp/internal/core/types"
	"autoerp/internal/domain/stock"
)

// Repository is an in-memory stock.Repository.
type Repository struct {
	mu        sync.Mutex
	Stocks    map[stock.Key]stock.Stock
	Moves     []stock.Movement
	Infos     map[id.ID]stock.ArticleInfo
	SeuilMin  map[id.ID]int64
	Depots    []id.ID
	LockCalls [][]stock.Key
	// Calls lists "ensure" and "lock" in call order.
	Calls []string
}

func New() *Repository {
	return &Repository{
		Stocks:   map[stock.Key]stock.Stock{},
		Infos:    map[id.ID]stock.ArticleInfo{},
		SeuilMin: map[id.ID]int64{},
	}
}

// AddArticle registers an article with its cost.
func (r *Repository) AddArticle(libelle, cmp string) id.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	aid := id.New()
	r.Infos[aid] = stock.ArticleInfo{ID: aid, Libelle: libelle, CMP: types.MustMoney(cmp)}
	return aid
}

// Put sets the balance of an article in an agence.
func (r *Repository) Put(articleID, agenceID id.ID, quantite, reservee int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := stock.Key{ArticleID: articleID, AgenceID: agenceID}
	r.Stocks[k] = stock.Stock{ArticleID: articleID, AgenceID: agenceID, Quantite: quantite, QuantiteReservee: reservee}
}

// Qty returns (quantite, quantite_reservee) of a row.
func (r *Repository) Qty(articleID, agenceID id.ID) (int64, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.Stocks[stock.Key{ArticleID: articleID, AgenceID: agenceID}]
	return s.Quantite, s.QuantiteReservee
}

// MovementsOf returns the movements of a reference.
func (r *Repository) MovementsOf(reference string) []stock.Movement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.Movement
	for _, m := range r.Moves {
		if m.Reference == reference {
			out = append(out, m)
		}
	}
	return out
}

func (r *Repository) EnsureStocks(_ context.Context, keys []stock.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "ensure")
	for _, k := range keys {
		if _, ok := r.Stocks[k]; !ok {
			r.Stocks[k] = stock.Stock{ArticleID: k.ArticleID, AgenceID: k.AgenceID, ValeurStock: types.Zero()}
		}
	}
	return nil
}

func (r *Repository) LockStocks(_ context.Context, keys []stock.Key) ([]stock.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "lock")
	r.LockCalls = append(r.LockCalls, slices.Clone(keys))
	var out []stock.Stock
	for _, k := range keys {
		if s, ok := r.Stocks[k]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Repository) SaveStocks(_ context.Context, rows []stock.Stock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range rows {
		r.Stocks[s.Key()] = s
	}
	return nil
}

func (r *Repository) InsertMovements(_ context.Context, movements []stock.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Moves = append(r.Moves, movements...)
	return nil
}

func (r *Repository) Articles(_ context.Context, articleIDs []id.ID) (map[id.ID]stock.ArticleInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[id.ID]stock.ArticleInfo, len(articleIDs))
	for _, aid := range articleIDs {
		if info, ok := r.Infos[aid]; ok {
			out[aid] = info
		}
	}
	return out, nil
}

func (r *Repository) InitArticle(_ context.Context, articleID id.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Infos[articleID]; !ok {
		r.Infos[articleID] = stock.ArticleInfo{ID: articleID, CMP: types.Zero()}
	}
	for _, d := range r.Depots {
		k := stock.Key{ArticleID: articleID, AgenceID: d}
		if _, ok := r.Stocks[k]; !ok {
			r.Stocks[k] = stock.Stock{ArticleID: articleID, AgenceID: d}
		}
	}
	return int64(len(r.Depots)), nil
}

func (r *Repository) ByArticle(_ context.Context, articleID id.ID) ([]stock.StockView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockView
	for k, s := range r.Stocks {
		if k.ArticleID == articleID {
			out = append(out, stock.StockView{Stock: s, Libelle: r.Infos[articleID].Libelle})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (r *Repository) BelowThreshold(_ context.Context, agenceID *id.ID) ([]stock.StockView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockView
	for k, s := range r.Stocks {
		if agenceID != nil && k.AgenceID != *agenceID {
			continue
		}
		if s.Quantite <= r.SeuilMin[k.ArticleID] {
			out = append(out, stock.StockView{Stock: s, SeuilMin: r.SeuilMin[k.ArticleID]})
		}
	}
	return out, nil
}

func (r *Repository) ListMovements(_ context.Context, f stock.MovementFilter) ([]stock.Movement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.Movement
	for _, m := range r.Moves {
		if f.ArticleID != nil && m.ArticleID != *f.ArticleID {
			continue
		}
		if f.AgenceID != nil && m.AgenceID != *f.AgenceID {
			continue
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if f.Reference != "" && m.Reference != f.Reference {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (r *Repository) HasMovements(_ context.Context, articleID id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.Moves {
		if m.ArticleID == articleID {
			return true, nil
		}
	}
	return false, nil
}

var _ stock.Repository = (*Repository)(nil)
