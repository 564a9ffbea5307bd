package stock

import (
	"context"
	"fmt"
	"slices"
	"time"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/core/types"
)

// Ledger is a set of stock rows locked by the current transaction.
// Mutations are kept in memory and written by Flush, together with the
// movements they produced.
type Ledger struct {
	repo     Repository
	keys     map[Key]bool
	rows     map[Key]*Stock
	articles map[id.ID]ArticleInfo
	dirty    map[Key]bool
	moves    []Movement
	now      time.Time
	userID   *id.ID
}

func sortedKeys(keys []Key) []Key {
	out := make([]Key, 0, len(keys))
	seen := make(map[Key]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	slices.SortFunc(out, func(a, b Key) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}

// newLedger locks the rows of keys. With ensure, missing rows are first
// created at zero so that every key ends up locked; otherwise they stay
// absent and only reads and Set see them.
func newLedger(ctx context.Context, repo Repository, keys []Key, ensure bool, now time.Time, userID *id.ID) (*Ledger, error) {
	keys = sortedKeys(keys)
	l := &Ledger{
		repo:   repo,
		keys:   make(map[Key]bool, len(keys)),
		rows:   make(map[Key]*Stock, len(keys)),
		dirty:  make(map[Key]bool),
		now:    now,
		userID: userID,
	}

	articleIDs := make([]id.ID, 0, len(keys))
	for _, k := range keys {
		l.keys[k] = true
		if !slices.Contains(articleIDs, k.ArticleID) {
			articleIDs = append(articleIDs, k.ArticleID)
		}
	}

	var err error
	if l.articles, err = repo.Articles(ctx, articleIDs); err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	for _, aid := range articleIDs {
		if _, ok := l.articles[aid]; !ok {
			return nil, apperror.NewNotFound("article", aid.String())
		}
	}

	if ensure {
		if err := repo.EnsureStocks(ctx, keys); err != nil {
			return nil, fmt.Errorf("ensure stocks: %w", err)
		}
	}
	rows, err := repo.LockStocks(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("lock stocks: %w", err)
	}
	for i := range rows {
		l.rows[rows[i].Key()] = &rows[i]
	}
	return l, nil
}

// Get returns the locked row of k, if it exists.
func (l *Ledger) Get(k Key) (Stock, bool) {
	if s, ok := l.rows[k]; ok {
		return *s, true
	}
	return Stock{}, false
}

// Available returns the sellable quantity of k.
func (l *Ledger) Available(k Key) int64 {
	if s, ok := l.rows[k]; ok {
		return s.Quantite
	}
	return 0
}

// Article returns the cost data of articleID.
func (l *Ledger) Article(articleID id.ID) ArticleInfo {
	return l.articles[articleID]
}

// Check fails with INSUFFICIENT_STOCK when fewer than q units are available.
func (l *Ledger) Check(k Key, q int64) error {
	if avail := l.Available(k); avail < q {
		return apperror.NewInsufficientStock(k.ArticleID.String(), k.AgenceID.String(), q, avail)
	}
	return nil
}

func (l *Ledger) row(k Key) (*Stock, error) {
	if !l.keys[k] {
		return nil, fmt.Errorf("stock row %s/%s was not locked", k.ArticleID, k.AgenceID)
	}
	s, ok := l.rows[k]
	if !ok {
		return nil, apperror.NewNotFound("stock", k.ArticleID.String()).WithDetail("agence_id", k.AgenceID.String())
	}
	return s, nil
}

// Reserve moves q units of k from quantite to quantite_reservee.
func (l *Ledger) Reserve(k Key, q int64) error {
	if err := l.Check(k, q); err != nil {
		return err
	}
	s, err := l.row(k)
	if err != nil {
		return err
	}
	s.Quantite -= q
	s.QuantiteReservee += q
	l.dirty[k] = true
	return nil
}

// Release returns q reserved units of k to quantite.
func (l *Ledger) Release(k Key, q int64) error {
	s, err := l.reserved(k, q)
	if err != nil {
		return err
	}
	s.QuantiteReservee -= q
	s.Quantite += q
	l.dirty[k] = true
	return nil
}

// Consume removes q reserved units of k, the goods having left the agence.
// The VENTE movement is recorded with quantite -q.
func (l *Ledger) Consume(k Key, q int64, m Movement) error {
	s, err := l.reserved(k, q)
	if err != nil {
		return err
	}
	s.QuantiteReservee -= q
	l.dirty[k] = true
	l.record(s, -q, m)
	return nil
}

func (l *Ledger) reserved(k Key, q int64) (*Stock, error) {
	s, err := l.row(k)
	if err != nil {
		return nil, err
	}
	if s.QuantiteReservee < q {
		return nil, apperror.NewBusinessRule("RESERVATION_MISMATCH", "reserved quantity is lower than requested").
			WithDetail("article_id", k.ArticleID.String()).
			WithDetail("agence_id", k.AgenceID.String()).
			WithDetail("quantite_reservee", s.QuantiteReservee).
			WithDetail("quantite_demandee", q)
	}
	return s, nil
}

// Move adds delta (signed) to quantite of k and records m.
// A debit larger than the available quantity fails with INSUFFICIENT_STOCK.
func (l *Ledger) Move(k Key, delta int64, m Movement) error {
	if delta == 0 {
		return nil
	}
	if delta < 0 {
		if err := l.Check(k, -delta); err != nil {
			return err
		}
	}
	s, err := l.row(k)
	if err != nil {
		return err
	}
	s.Quantite += delta
	l.dirty[k] = true
	l.record(s, delta, m)
	return nil
}

// Set overwrites quantite of k with counted and records the difference as m.
// It returns the previous quantity and the signed difference.
func (l *Ledger) Set(k Key, counted int64, m Movement) (old, ecart int64, err error) {
	s, ok := l.rows[k]
	if !ok {
		return 0, 0, apperror.NewNotFound("stock", k.ArticleID.String()).WithDetail("agence_id", k.AgenceID.String())
	}
	old = s.Quantite
	ecart = counted - old
	if ecart == 0 {
		return old, 0, nil
	}
	s.Quantite = counted
	l.dirty[k] = true
	l.record(s, ecart, m)
	return old, ecart, nil
}

func (l *Ledger) record(s *Stock, q int64, m Movement) {
	m.ID = id.New()
	m.ArticleID = s.ArticleID
	m.AgenceID = s.AgenceID
	m.Quantite = q
	if m.PrixUnitaire.IsZero() {
		m.PrixUnitaire = l.articles[s.ArticleID].CMP
	}
	m.ValeurTotale = types.Round2(m.PrixUnitaire.Mul(types.Qty(q)))
	if m.CreatedBy == nil {
		m.CreatedBy = l.userID
	}
	m.CreatedAt = l.now
	l.moves = append(l.moves, m)

	at := l.now
	s.LastMovement = &at
}

// Movements returns the movements recorded so far.
func (l *Ledger) Movements() []Movement {
	return slices.Clone(l.moves)
}

// Flush writes the changed rows, valued at the article CMP, and the movements.
func (l *Ledger) Flush(ctx context.Context) error {
	changed := make([]Key, 0, len(l.dirty))
	for k := range l.dirty {
		changed = append(changed, k)
	}
	changed = sortedKeys(changed)

	rows := make([]Stock, 0, len(changed))
	for _, k := range changed {
		s := l.rows[k]
		if s.Quantite < 0 || s.QuantiteReservee < 0 {
			return apperror.NewInternal(fmt.Errorf("negative stock for %s/%s", k.ArticleID, k.AgenceID))
		}
		s.ValeurStock = types.Round2(l.articles[k.ArticleID].CMP.Mul(types.Qty(s.Quantite)))
		s.UpdatedAt = l.now
		rows = append(rows, *s)
	}
	if len(rows) > 0 {
		if err := l.repo.SaveStocks(ctx, rows); err != nil {
			return fmt.Errorf("save stocks: %w", err)
		}
	}
	if len(l.moves) > 0 {
		if err := l.repo.InsertMovements(ctx, l.moves); err != nil {
			return fmt.Errorf("insert movements: %w", err)
		}
	}
	l.dirty = make(map[Key]bool)
	l.moves = nil
	return nil
}
