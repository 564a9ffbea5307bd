package v1

import (
	"github.com/redis/go-redis/v9"

	"autoerp/internal/core/numerator"
	"autoerp/internal/core/security"
	"autoerp/internal/domain/audit"
	"autoerp/internal/domain/bcg"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/hr"
	"autoerp/internal/domain/identity"
	"autoerp/internal/domain/order"
	"autoerp/internal/domain/portal"
	"autoerp/internal/domain/stock"
	"autoerp/internal/domain/upload"
	"autoerp/internal/infrastructure/cache"
	"autoerp/internal/infrastructure/storage/postgres/auth_repo"
	"autoerp/internal/infrastructure/storage/postgres/catalog_repo"
	"autoerp/internal/infrastructure/storage/postgres/document_repo"
	"autoerp/internal/infrastructure/storage/postgres/hr_repo"
	"autoerp/internal/infrastructure/storage/postgres/register_repo"
)

// ServiceDeps are the shared collaborators of the domain services.
// Repositories and transactions come from the tenant context of each request.
type ServiceDeps struct {
	JWT       *identity.JWTService
	Policy    *security.Policy
	Numerator numerator.Generator
	Audit     audit.Recorder
	Redis     redis.UniversalClient

	Identity      identity.ServiceConfig
	Portal        portal.Config
	UploadDir     string
	UploadMaxSize int64
}

// Services are the domain services served by the API.
type Services struct {
	Identity *identity.Service
	Clients  *client.Service
	Catalog  *catalog.Service
	Stock    *stock.Service
	BCG      *bcg.Service
	Orders   *order.Service
	HR       *hr.Service
	Portal   *portal.Service
	Upload   *upload.Service
}

// NewServices wires the repositories into the domain services.
func NewServices(d ServiceDeps) Services {
	users := auth_repo.NewUserRepo()

	stockService := stock.NewService(register_repo.NewStockRepo(), d.Numerator, d.Policy, nil)
	catalogService := catalog.NewService(catalog_repo.NewArticleRepo(), stockService, nil)
	clientService := client.NewService(catalog_repo.NewClientRepo(), d.Policy, nil)
	identityService := identity.NewService(users, auth_repo.NewAgenceRepo(), auth_repo.NewTokenRepo(), nil, d.JWT, d.Policy, d.Identity)

	orderService := order.NewService(order.Deps{
		Repo:      document_repo.NewOrderRepo(),
		Clients:   clientService,
		Articles:  catalogService,
		Stock:     stockService,
		Numerator: d.Numerator,
		Audit:     d.Audit,
		Policy:    d.Policy,
	})

	return Services{
		Identity: identityService,
		Clients:  clientService,
		Catalog:  catalogService,
		Stock:    stockService,
		BCG:      bcg.NewService(document_repo.NewBCGRepo(), identityService, stockService, d.Numerator, d.Audit, d.Policy, nil),
		Orders:   orderService,
		HR:       hr.NewService(hr_repo.New(), users, d.Policy, nil),
		Portal: portal.NewService(clientService, catalogService, orderService,
			cache.NewOTPStore(d.Redis), cache.NewSessionStore(d.Redis), d.Portal),
		Upload: upload.NewService(d.UploadDir, d.UploadMaxSize, d.Policy),
	}
}
