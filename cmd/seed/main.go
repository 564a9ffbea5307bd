// Package main seeds a tenant with an admin account and, on request, demo
// agences, articles, stock and clients.
//
// Usage: seed --tenant <tenant-uuid> [--demo]
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"autoerp/internal/config"
	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/identity"
	"autoerp/internal/domain/stock"
	"autoerp/internal/infrastructure/numerator"
	"autoerp/internal/infrastructure/storage/postgres"
	"autoerp/internal/infrastructure/storage/postgres/auth_repo"
	"autoerp/internal/infrastructure/storage/postgres/catalog_repo"
	"autoerp/internal/infrastructure/storage/postgres/register_repo"
	"autoerp/pkg/logger"
)

type seeder struct {
	identity *identity.Service
	catalog  *catalog.Service
	clients  *client.Service
	stock    *stock.Service
	log      *logger.Logger
}

func main() {
	tenantID, demo := parseArgs(os.Args[1:])
	if tenantID == "" {
		fmt.Println("Usage: seed --tenant <tenant-uuid> [--demo]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()

	metaPool, err := pgxpool.New(ctx, cfg.MetaDatabaseURL)
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()

	manager := tenant.NewManager(cfg.TenantManager(), tenant.NewPostgresRegistry(metaPool), log)
	defer manager.Close()

	mp, err := manager.GetPool(ctx, tenantID)
	if err != nil {
		log.Fatalw("failed to open tenant database", "tenant_id", tenantID, "error", err)
	}
	mp.AcquireRef()
	defer mp.ReleaseRef()

	ctx = postgres.WithTenantPool(ctx, mp)
	ctx = appctx.WithUser(ctx, &appctx.UserContext{
		TenantID: tenantID,
		Email:    "seed@autoerp",
		Role:     string(security.RoleAdmin),
	})

	s := newSeeder(cfg, log)
	if err := s.admin(ctx); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}
	if demo {
		if err := s.demo(ctx); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}
	log.Infow("seeding completed", "tenant_id", tenantID, "demo", demo)
}

func parseArgs(args []string) (tenantID string, demo bool) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--tenant":
			if i+1 < len(args) {
				tenantID = args[i+1]
				i++
			}
		case "--demo":
			demo = true
		}
	}
	return tenantID, demo
}

func newSeeder(cfg config.Config, log *logger.Logger) *seeder {
	policy := security.DefaultPolicy()
	stockService := stock.NewService(register_repo.NewStockRepo(), numerator.NewFromContext(), policy, nil)
	identityCfg := identity.DefaultServiceConfig()
	identityCfg.RefreshTokenTTL = cfg.RefreshTokenTTL

	return &seeder{
		identity: identity.NewService(auth_repo.NewUserRepo(), auth_repo.NewAgenceRepo(), auth_repo.NewTokenRepo(), nil,
			identity.NewJWTService(identity.DefaultJWTConfig(cfg.JWTSecret)), policy, identityCfg),
		catalog: catalog.NewService(catalog_repo.NewArticleRepo(), stockService, nil),
		clients: client.NewService(catalog_repo.NewClientRepo(), policy, nil),
		stock:   stockService,
		log:     log,
	}
}

// exists reports whether err is a uniqueness conflict, i.e. already seeded.
func exists(err error) bool {
	appErr, ok := apperror.AsAppError(err)
	return ok && appErr.HTTPStatus == http.StatusConflict
}

func (s *seeder) admin(ctx context.Context) error {
	email := getEnv("ADMIN_EMAIL", "admin@autoerp.ma")
	_, err := s.identity.CreateUser(ctx, identity.CreateUserInput{
		Email:    email,
		Password: getEnv("ADMIN_PASSWORD", "Admin123!"),
		Nom:      "Admin",
		Prenom:   "AutoERP",
		Role:     string(security.RoleAdmin),
	})
	switch {
	case exists(err):
		s.log.Infow("admin user already exists", "email", email)
		return nil
	case err != nil:
		return err
	}
	s.log.Infow("admin user created", "email", email)
	return nil
}

func (s *seeder) demo(ctx context.Context) error {
	agences, err := s.agences(ctx)
	if err != nil {
		return fmt.Errorf("agences: %w", err)
	}
	articles, err := s.articles(ctx)
	if err != nil {
		return fmt.Errorf("articles: %w", err)
	}
	if depot, ok := agences["DEPOT"]; ok && len(articles) > 0 {
		items := make([]stock.InventoryItem, 0, len(articles))
		for _, a := range articles {
			items = append(items, stock.InventoryItem{ArticleID: a, Counted: 50, Commentaire: "stock initial"})
		}
		if _, err := s.stock.AdjustInventory(ctx, depot, items); err != nil {
			return fmt.Errorf("initial stock: %w", err)
		}
	}
	return s.demoClients(ctx)
}

func (s *seeder) agences(ctx context.Context) (map[string]id.ID, error) {
	inputs := []identity.AgenceInput{
		{Nom: "Dépôt central", Code: "DEPOT", Ville: "Casablanca", IsDepot: true},
		{Nom: "Agence Rabat", Code: "RBT", Ville: "Rabat"},
		{Nom: "Camion 1", Code: "VEH1", Ville: "Casablanca", IsVehicule: true},
	}
	out := make(map[string]id.ID, len(inputs))
	for _, in := range inputs {
		a, err := s.identity.CreateAgence(ctx, in)
		if exists(err) {
			s.log.Infow("agence already exists", "code", in.Code)
			continue
		}
		if err != nil {
			return nil, err
		}
		out[in.Code] = a.ID
	}
	return out, nil
}

func (s *seeder) articles(ctx context.Context) ([]id.ID, error) {
	inputs := []catalog.Input{
		{SKU: "FLT-HUI-001", Libelle: "Filtre à huile", Marque: "Bosch", Famille: "Filtration", SousFamille: "Huile",
			Type: catalog.TypePiece, PrixPublic: decimal.RequireFromString("85"), PrixStandard: decimal.RequireFromString("60"), SeuilMin: 10},
		{SKU: "PLQ-FRN-002", Libelle: "Plaquettes de frein avant", Marque: "Valeo", Famille: "Freinage", SousFamille: "Plaquettes",
			Type: catalog.TypePiece, PrixPublic: decimal.RequireFromString("320"), PrixStandard: decimal.RequireFromString("240"), SeuilMin: 5},
		{SKU: "HUI-5W30-5L", Libelle: "Huile moteur 5W30 5L", Marque: "Total", Famille: "Lubrifiants", SousFamille: "Moteur",
			Type: catalog.TypeLubrifiant, PrixPublic: decimal.RequireFromString("410"), PrixStandard: decimal.RequireFromString("330"), SeuilMin: 20},
	}
	var ids []id.ID
	for _, in := range inputs {
		a, err := s.catalog.Create(ctx, in)
		if exists(err) {
			s.log.Infow("article already exists", "sku", in.SKU)
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *seeder) demoClients(ctx context.Context) error {
	inputs := []client.Input{
		{Type: client.TypeParticulier, Nom: "Alami", Prenom: "Youssef", Telephone: "0612345678", Ville: "Casablanca"},
		{Type: client.TypeEntreprise, RaisonSociale: "Garage Atlas", Telephone: "0522334455", Ville: "Rabat",
			TypeEntreprise: "SARL", ICE: "001234567000089"},
	}
	for _, in := range inputs {
		_, err := s.clients.Create(ctx, in)
		if exists(err) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
