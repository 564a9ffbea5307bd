package order_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/numerator"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tx"
	"autoerp/internal/core/types"
	"autoerp/internal/domain/audit"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/order"
	"autoerp/internal/domain/stock"
	"autoerp/internal/domain/stock/stocktest"
)

type fixture struct {
	svc      *order.Service
	repo     *memOrders
	stock    *stocktest.Repository
	clients  *memClients
	articles *memArticles
	audit    *memAudit
	agence   id.ID
	client   id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemOrders(),
		stock:    stocktest.New(),
		clients:  &memClients{rows: map[id.ID]*client.Client{}},
		articles: &memArticles{rows: map[id.ID]catalog.Article{}},
		audit:    &memAudit{},
		agence:   id.New(),
	}
	policy := security.DefaultPolicy()
	f.svc = order.NewService(order.Deps{
		Repo:      f.repo,
		Clients:   f.clients,
		Articles:  f.articles,
		Stock:     stock.NewService(f.stock, numerator.NewMemoryGenerator(), policy, tx.Nop{}),
		Numerator: numerator.NewMemoryGenerator(),
		Audit:     f.audit,
		Policy:    policy,
		TxManager: tx.Nop{},
	})
	f.client = f.addClient(true, false)
	return f
}

func (f *fixture) addClient(active, prospect bool) id.ID {
	c := &client.Client{Base: entity.NewBase(), Type: client.TypeEntreprise, RaisonSociale: "Garage Atlas",
		Telephone: "0612345678", IsActive: active, IsProspect: prospect, AgenceID: &f.agence}
	f.clients.rows[c.ID] = c
	return c.ID
}

func (f *fixture) addArticle(sku, standard, public string, qty int64) id.ID {
	aid := f.stock.AddArticle(sku, "40")
	f.articles.rows[aid] = catalog.Article{
		Base:         entity.Base{ID: aid},
		SKU:          sku,
		Libelle:      sku,
		PrixStandard: types.MustMoney(standard),
		PrixPublic:   types.MustMoney(public),
		IsActive:     true,
	}
	f.stock.Put(aid, f.agence, qty, 0)
	return aid
}

func (f *fixture) asRole(role string, agence id.ID) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: id.New().String(), Role: role, AgenceID: agence.String(),
	})
}

func (f *fixture) admin() context.Context {
	return f.asRole(string(security.RoleAdmin), f.agence)
}

func money(s string) types.Money { return types.MustMoney(s) }

func TestLigneCompute(t *testing.T) {
	l := order.Ligne{Quantite: 2, PrixUnitaire: money("80"), RemisePourcentage: money("10")}
	require.NoError(t, l.Compute())
	assert.True(t, money("16").Equal(l.RemiseMontant))
	assert.True(t, money("144").Equal(l.MontantHT))
	assert.True(t, money("172.8").Equal(l.MontantTTC))

	ht, tva, ttc := order.Totals([]order.Ligne{l})
	assert.True(t, money("144").Equal(ht))
	assert.True(t, money("28.8").Equal(tva))
	assert.True(t, money("172.8").Equal(ttc))

	bad := order.Ligne{Quantite: 0, PrixUnitaire: money("1")}
	assert.Equal(t, 400, apperror.GetHTTPStatus(bad.Compute()))
	bad = order.Ligne{Quantite: 1, PrixUnitaire: money("1"), RemisePourcentage: money("101")}
	assert.Equal(t, 400, apperror.GetHTTPStatus(bad.Compute()))
}

func TestCreate_BuildsLinesAndNumbers(t *testing.T) {
	f := newFixture(t)
	plaquette := f.addArticle("PLQ-01", "80", "95", 10)
	ctx := f.admin()

	c, err := f.svc.Create(ctx, order.CreateInput{
		ClientID: f.client,
		Lignes:   []order.LigneInput{{ArticleID: plaquette, Quantite: 2, RemisePourcentage: money("10")}},
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatutBrouillon, c.Statut)
	assert.True(t, strings.HasPrefix(c.Numero, "CMD"))
	assert.True(t, money("144").Equal(c.MontantHT))
	assert.True(t, money("28.8").Equal(c.MontantTVA))
	assert.True(t, money("172.8").Equal(c.MontantTTC))
	assert.Equal(t, "PLQ-01", c.Lignes[0].SKU)
	assert.False(t, c.StockReserve)
	assert.Equal(t, []audit.Action{audit.ActionCreate}, f.audit.actions(c.ID))

	_, r := f.stock.Qty(plaquette, f.agence)
	assert.Zero(t, r)

	other, err := f.svc.Create(ctx, order.CreateInput{
		ClientID: f.client,
		Lignes:   []order.LigneInput{{ArticleID: plaquette, Quantite: 1}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, c.Numero, other.Numero)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	filtre := f.addArticle("FLT-01", "50", "60", 3)
	ctx := f.admin()

	_, err := f.svc.Create(ctx, order.CreateInput{ClientID: f.client})
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))

	_, err = f.svc.Create(ctx, order.CreateInput{
		ClientID: f.client,
		Lignes:   []order.LigneInput{{ArticleID: filtre, Quantite: 2}, {ArticleID: filtre, Quantite: 2}},
	})
	require.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(4), appErr.Details["quantite_demandee"])

	_, err = f.svc.Create(ctx, order.CreateInput{
		ClientID: f.addClient(false, false),
		Lignes:   []order.LigneInput{{ArticleID: filtre, Quantite: 1}},
	})
	assert.True(t, apperror.HasCode(err, "CLIENT_INACTIVE"))

	_, err = f.svc.Create(ctx, order.CreateInput{
		ClientID: f.client,
		Lignes:   []order.LigneInput{{ArticleID: id.New(), Quantite: 1}},
	})
	assert.True(t, apperror.HasCode(err, "ARTICLE_NOT_FOUND"))

	_, err = f.svc.Create(ctx, order.CreateInput{
		ClientID:         f.client,
		EncaissementType: "bitcoin",
		Lignes:           []order.LigneInput{{ArticleID: filtre, Quantite: 1}},
	})
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))

	_, err = f.svc.Create(context.Background(), order.CreateInput{ClientID: f.client})
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))

	assert.Empty(t, f.repo.commandes)
}

func TestCreate_EncaisseReservesAndConvertsProspect(t *testing.T) {
	f := newFixture(t)
	batterie := f.addArticle("BAT-70", "900", "1000", 5)
	prospect := f.addClient(false, true)

	c, err := f.svc.Create(f.admin(), order.CreateInput{
		ClientID:         prospect,
		EncaissementType: "especes",
		Lignes:           []order.LigneInput{{ArticleID: batterie, Quantite: 2}},
	})
	require.NoError(t, err)
	assert.True(t, c.IsEncaisse)
	assert.True(t, c.StockReserve)
	assert.True(t, c.MontantTTC.Equal(c.EncaissementMontant))

	_, r := f.stock.Qty(batterie, f.agence)
	assert.Equal(t, int64(2), r)
	assert.False(t, f.clients.rows[prospect].IsProspect)
	assert.True(t, f.clients.rows[prospect].IsActive)

	c, err = f.svc.Valider(f.admin(), c.ID)
	require.NoError(t, err)
	_, r = f.stock.Qty(batterie, f.agence)
	assert.Equal(t, int64(2), r, "validation must not reserve twice")
}

func TestPipeline_ValiderLivrerFacturerPayer(t *testing.T) {
	f := newFixture(t)
	disque := f.addArticle("DSQ-280", "300", "350", 10)
	plaquette := f.addArticle("PLQ-01", "80", "95", 10)
	ctx := f.admin()

	c, err := f.svc.Create(ctx, order.CreateInput{
		ClientID: f.client,
		Lignes: []order.LigneInput{
			{ArticleID: disque, Quantite: 2},
			{ArticleID: plaquette, Quantite: 4, RemisePourcentage: money("5")},
		},
	})
	require.NoError(t, err)

	c, err = f.svc.Valider(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatutValidee, c.Statut)
	q, r := f.stock.Qty(disque, f.agence)
	assert.Equal(t, []int64{8, 2}, []int64{q, r})

	_, err = f.svc.Valider(ctx, c.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))

	c, err = f.svc.Livrer(ctx, c.ID, order.LivrerInput{Commentaire: "quai 2"})
	require.NoError(t, err)
	assert.Equal(t, order.StatutLivree, c.Statut)
	require.NotNil(t, c.BL)
	assert.True(t, strings.HasPrefix(c.BL.Numero, "BL"))
	q, r = f.stock.Qty(disque, f.agence)
	assert.Equal(t, []int64{8, 0}, []int64{q, r})
	q, r = f.stock.Qty(plaquette, f.agence)
	assert.Equal(t, []int64{6, 0}, []int64{q, r})

	moves := f.stock.MovementsOf(c.BL.Numero)
	require.Len(t, moves, 2)
	for _, m := range moves {
		assert.Equal(t, stock.TypeVente, m.Type)
		assert.Negative(t, m.Quantite)
		assert.Equal(t, c.BL.ID, *m.ReferenceID)
	}

	bl := c.BL
	c, err = f.svc.Facturer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatutFacturee, c.Statut)
	require.NotNil(t, c.BL, "facturee commande keeps its delivery note")
	assert.Equal(t, bl.Numero, c.BL.Numero)
	fa := c.Facture
	require.NotNil(t, fa)
	assert.True(t, strings.HasPrefix(fa.Numero, "FAC"))
	assert.True(t, c.MontantTTC.Equal(fa.MontantTTC))
	assert.True(t, fa.MontantTTC.Equal(fa.MontantRestant))

	_, err = f.svc.EnregistrerPaiement(ctx, fa.ID, order.PaiementInput{Montant: money("10"), Mode: "cheque"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus), "brouillon facture cannot be paid")

	fa, err = f.svc.Declarer(ctx, fa.ID)
	require.NoError(t, err)
	assert.Equal(t, order.FactureDeclaree, fa.Statut)
	assert.NotNil(t, fa.DateDeclaree)

	_, err = f.svc.EnregistrerPaiement(ctx, fa.ID, order.PaiementInput{Montant: fa.MontantTTC.Add(money("1")), Mode: "virement"})
	assert.True(t, apperror.HasCode(err, "OVERPAYMENT"))

	fa, err = f.svc.EnregistrerPaiement(ctx, fa.ID, order.PaiementInput{Montant: money("100"), Mode: "especes"})
	require.NoError(t, err)
	assert.Equal(t, order.FactureDeclaree, fa.Statut)
	assert.True(t, money("100").Equal(fa.MontantPaye))

	fa, err = f.svc.EnregistrerPaiement(ctx, fa.ID, order.PaiementInput{Montant: fa.MontantRestant, Mode: "especes"})
	require.NoError(t, err)
	assert.Equal(t, order.FacturePayee, fa.Statut)
	assert.True(t, fa.MontantRestant.IsZero())
	assert.NotNil(t, fa.DatePaiement)

	detail, err := f.svc.GetFacture(ctx, fa.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Paiements, 2)

	assert.Equal(t,
		[]audit.Action{audit.ActionCreate, audit.ActionValidate, audit.ActionDeliver, audit.ActionInvoice},
		f.audit.actions(c.ID))

	tr, err := f.svc.Track(ctx, c.Numero)
	require.NoError(t, err)
	assert.Equal(t, order.StatutFacturee, tr.Statut)
	assert.Equal(t, c.BL.Numero, tr.NumeroBL)
	assert.Equal(t, fa.Numero, tr.NumeroFacture)
	assert.Len(t, tr.Lignes, 2)
}

func TestValider_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	disque := f.addArticle("DSQ-280", "300", "350", 5)
	filtre := f.addArticle("FLT-01", "50", "60", 5)
	ctx := f.admin()

	c, err := f.svc.Create(ctx, order.CreateInput{
		ClientID: f.client,
		Lignes:   []order.LigneInput{{ArticleID: disque, Quantite: 3}, {ArticleID: filtre, Quantite: 5}},
	})
	require.NoError(t, err)

	// Another order takes the filters before validation.
	f.stock.Put(filtre, f.agence, 2, 3)

	_, err = f.svc.Valider(ctx, c.ID)
	require.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	_, r := f.stock.Qty(disque, f.agence)
	assert.Zero(t, r)
	stored, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatutBrouillon, stored.Statut)
	assert.False(t, stored.StockReserve)
}

func TestValider_AgenceCondition(t *testing.T) {
	f := newFixture(t)
	filtre := f.addArticle("FLT-01", "50", "60", 5)
	c, err := f.svc.Create(f.admin(), order.CreateInput{
		ClientID: f.client,
		Lignes:   []order.LigneInput{{ArticleID: filtre, Quantite: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.Valider(f.asRole(string(security.RoleTC), id.New()), c.ID)
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))

	_, err = f.svc.Valider(f.asRole(string(security.RoleTC), f.agence), c.ID)
	assert.NoError(t, err)

	_, err = f.svc.Livrer(f.asRole(string(security.RoleTC), f.agence), c.ID, order.LivrerInput{})
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))
}

func TestAnnuler_ReleasesReservation(t *testing.T) {
	f := newFixture(t)
	filtre := f.addArticle("FLT-01", "50", "60", 5)
	ctx := f.admin()

	c, err := f.svc.Create(ctx, order.CreateInput{
		ClientID: f.client,
		Lignes:   []order.LigneInput{{ArticleID: filtre, Quantite: 4}},
	})
	require.NoError(t, err)
	_, err = f.svc.Valider(ctx, c.ID)
	require.NoError(t, err)

	c, err = f.svc.Annuler(ctx, c.ID, "client injoignable")
	require.NoError(t, err)
	assert.Equal(t, order.StatutAnnulee, c.Statut)
	assert.Equal(t, "client injoignable", c.MotifAnnulation)
	q, r := f.stock.Qty(filtre, f.agence)
	assert.Equal(t, []int64{5, 0}, []int64{q, r})

	_, err = f.svc.Annuler(ctx, c.ID, "again")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))
	_, err = f.svc.Livrer(ctx, c.ID, order.LivrerInput{})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))
}

func TestCreatePortal_PublicPricesNoDiscount(t *testing.T) {
	f := newFixture(t)
	filtre := f.addArticle("FLT-01", "50", "60", 0)
	pu := money("1")

	c, err := f.svc.CreatePortal(context.Background(), f.client, []order.LigneInput{
		{ArticleID: filtre, Quantite: 2, PrixUnitaire: &pu, RemisePourcentage: money("50")},
	})
	require.NoError(t, err)
	assert.Equal(t, order.SourcePortail, c.Source)
	assert.Equal(t, f.agence, *c.AgenceID)
	assert.True(t, money("60").Equal(c.Lignes[0].PrixUnitaire))
	assert.True(t, c.Lignes[0].RemiseMontant.IsZero())
	assert.True(t, money("144").Equal(c.MontantTTC))

	_, err = f.svc.Valider(f.admin(), c.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	_, err = f.svc.CreatePortal(context.Background(), f.client, []order.LigneInput{{ArticleID: id.New(), Quantite: 1}})
	assert.True(t, apperror.HasCode(err, "ARTICLES_NOT_FOUND"))
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))
}

func TestForClient_HidesDrafts(t *testing.T) {
	f := newFixture(t)
	filtre := f.addArticle("FLT-01", "50", "60", 10)
	ctx := f.admin()

	for range 2 {
		_, err := f.svc.Create(ctx, order.CreateInput{ClientID: f.client, Lignes: []order.LigneInput{{ArticleID: filtre, Quantite: 1}}})
		require.NoError(t, err)
	}
	c, err := f.svc.Create(ctx, order.CreateInput{ClientID: f.client, Lignes: []order.LigneInput{{ArticleID: filtre, Quantite: 1}}})
	require.NoError(t, err)
	_, err = f.svc.Valider(ctx, c.ID)
	require.NoError(t, err)

	list, err := f.svc.ForClient(context.Background(), f.client, entity.Page{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, c.Numero, list.Items[0].Numero)

	all, err := f.svc.List(ctx, order.Filter{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)
}
