package order_test

import (
	"context"
	"sort"
	"sync"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/audit"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/order"
)

type memOrders struct {
	mu        sync.Mutex
	commandes map[id.ID]order.Commande
	bls       map[id.ID]order.BonLivraison
	factures  map[id.ID]order.Facture
	paiements []order.Paiement
}

func newMemOrders() *memOrders {
	return &memOrders{
		commandes: map[id.ID]order.Commande{},
		bls:       map[id.ID]order.BonLivraison{},
		factures:  map[id.ID]order.Facture{},
	}
}

func (m *memOrders) Create(_ context.Context, c *order.Commande) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Lignes = append([]order.Ligne(nil), c.Lignes...)
	cp.BL, cp.Facture = nil, nil
	m.commandes[c.ID] = cp
	return nil
}

func (m *memOrders) get(commandeID id.ID) (*order.Commande, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commandes[commandeID]
	if !ok {
		return nil, apperror.NewNotFound("commande", commandeID)
	}
	c.Lignes = append([]order.Ligne(nil), c.Lignes...)
	return &c, nil
}

func (m *memOrders) GetByID(_ context.Context, commandeID id.ID) (*order.Commande, error) {
	c, err := m.get(commandeID)
	if err != nil {
		return nil, err
	}
	c.Lignes = nil
	return c, nil
}

func (m *memOrders) GetByNumero(ctx context.Context, numero string) (*order.Commande, error) {
	m.mu.Lock()
	var found *id.ID
	for k, c := range m.commandes {
		if c.Numero == numero {
			found = &k
		}
	}
	m.mu.Unlock()
	if found == nil {
		return nil, apperror.NewNotFound("commande", numero)
	}
	return m.GetByID(ctx, *found)
}

func (m *memOrders) GetForUpdate(_ context.Context, commandeID id.ID) (*order.Commande, error) {
	return m.get(commandeID)
}

func (m *memOrders) Update(ctx context.Context, c *order.Commande) error {
	m.mu.Lock()
	lines := m.commandes[c.ID].Lignes
	m.mu.Unlock()
	cp := *c
	cp.Lignes = lines
	return m.Create(ctx, &cp)
}

func (m *memOrders) List(_ context.Context, f order.Filter) ([]order.Commande, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Commande
	for _, c := range m.commandes {
		if f.ClientID != nil && c.ClientID != *f.ClientID {
			continue
		}
		if f.AgenceID != nil && (c.AgenceID == nil || *c.AgenceID != *f.AgenceID) {
			continue
		}
		if f.ExcludeBrouillon && c.Statut == order.StatutBrouillon {
			continue
		}
		if f.Statut != "" && c.Statut != f.Statut {
			continue
		}
		c.Lignes = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Numero < out[j].Numero })
	return out, int64(len(out)), nil
}

func (m *memOrders) Lignes(_ context.Context, commandeID id.ID) ([]order.Ligne, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]order.Ligne(nil), m.commandes[commandeID].Lignes...), nil
}

func (m *memOrders) CreateBL(_ context.Context, bl *order.BonLivraison) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bls[bl.ID] = *bl
	return nil
}

func (m *memOrders) GetBL(_ context.Context, blID id.ID) (*order.BonLivraison, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bl, ok := m.bls[blID]
	if !ok {
		return nil, apperror.NewNotFound("bon_livraison", blID)
	}
	return &bl, nil
}

func (m *memOrders) CreateFacture(_ context.Context, f *order.Facture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factures[f.ID] = *f
	return nil
}

func (m *memOrders) GetFacture(_ context.Context, factureID id.ID) (*order.Facture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.factures[factureID]
	if !ok {
		return nil, apperror.NewNotFound("facture", factureID)
	}
	return &f, nil
}

func (m *memOrders) GetFactureForUpdate(ctx context.Context, factureID id.ID) (*order.Facture, error) {
	return m.GetFacture(ctx, factureID)
}

func (m *memOrders) UpdateFacture(ctx context.Context, f *order.Facture) error {
	return m.CreateFacture(ctx, f)
}

func (m *memOrders) ListFactures(_ context.Context, f order.FactureFilter) ([]order.Facture, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Facture
	for _, fa := range m.factures {
		if f.Statut == "" || fa.Statut == f.Statut {
			out = append(out, fa)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memOrders) CreatePaiement(_ context.Context, p *order.Paiement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paiements = append(m.paiements, *p)
	return nil
}

func (m *memOrders) Paiements(_ context.Context, factureID id.ID) ([]order.Paiement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Paiement
	for _, p := range m.paiements {
		if p.FactureID == factureID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memClients struct {
	rows map[id.ID]*client.Client
}

func (m *memClients) Get(_ context.Context, clientID id.ID) (*client.Client, error) {
	c, ok := m.rows[clientID]
	if !ok {
		return nil, apperror.NewNotFound("client", clientID)
	}
	cp := *c
	return &cp, nil
}

func (m *memClients) EnsureClient(_ context.Context, c *client.Client) error {
	c.IsProspect = false
	c.IsActive = true
	m.rows[c.ID] = c
	return nil
}

type memArticles struct {
	rows map[id.ID]catalog.Article
}

func (m *memArticles) GetMany(_ context.Context, ids []id.ID) ([]catalog.Article, error) {
	var out []catalog.Article
	for _, aid := range ids {
		if a, ok := m.rows[aid]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memAudit) Record(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) actions(entityID id.ID) []audit.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Action
	for _, e := range m.entries {
		if e.EntityID == entityID {
			out = append(out, e.Action)
		}
	}
	return out
}
