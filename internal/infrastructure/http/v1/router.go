// Package v1 wires the HTTP API: global middleware, tenant resolution,
// authentication and the routes of every module.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/internal/infrastructure/http/v1/dto"
	"autoerp/internal/infrastructure/http/v1/handlers"
	"autoerp/internal/infrastructure/http/v1/middleware"
	"autoerp/pkg/logger"
)

// Limit is a request budget per client IP.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RouterConfig holds everything the router needs.
type RouterConfig struct {
	TenantManager *tenant.Manager
	Logger        *logger.Logger
	JWTValidator  middleware.JWTValidator
	Policy        *security.Policy
	Services      Services

	// Idempotency guards order creation, stock transfers and BCG creation.
	Idempotency middleware.IdempotencyStore
	// CommissionQueue enables asynchronous commission calculation; may be nil.
	CommissionQueue handlers.CommissionQueue

	HealthChecks map[string]handlers.Check
	Version      string

	IsDevelopment      bool
	CORSOrigins        []string
	RateLimit          Limit
	OTPRateLimit       Limit
	PortalCookieSecure bool
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.IsDevelopment {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	dto.RegisterValidators()

	router := gin.New()

	// Order matters: Recovery's error must reach ErrorHandler.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())
	router.Use(middleware.SecureHeaders(cfg.IsDevelopment))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	health := handlers.NewHealthHandler(cfg.Version, cfg.TenantManager, cfg.HealthChecks)
	router.GET("/health", health.Live)
	router.GET("/ready", health.Ready)

	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	api.Use(middleware.TenantDB(cfg.TenantManager))

	base := handlers.NewBaseHandler()

	registerAuthRoutes(api, base, cfg)
	registerPortalRoutes(api, base, cfg)

	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))

	registerUserRoutes(protected, base, cfg)
	registerClientRoutes(protected, base, cfg)
	registerArticleRoutes(protected, base, cfg)
	registerStockRoutes(protected, base, cfg)
	registerCommandeRoutes(protected, base, cfg)
	registerHRRoutes(protected, base, cfg)
	registerUploadRoutes(protected, base, cfg)

	return router
}

func (cfg RouterConfig) can(capability security.Capability) gin.HandlerFunc {
	return middleware.RequireCapability(cfg.Policy, capability)
}

func (cfg RouterConfig) idempotent() gin.HandlerFunc {
	if cfg.Idempotency == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.Idempotency(cfg.Idempotency)
}

func registerAuthRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewAuthHandler(base, cfg.Services.Identity)
	authn := middleware.Auth(cfg.JWTValidator)

	g := api.Group("/auth")
	g.POST("/login", middleware.RateLimit(cfg.OTPRateLimit.Requests, cfg.OTPRateLimit.Window, httprate.KeyByEndpoint), h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", authn, h.Logout)
	g.GET("/me", authn, h.Me)
	g.POST("/register", authn, middleware.RequireRole(security.RoleAdmin), h.Register)
}

func registerUserRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewUserHandler(base, cfg.Services.Identity)

	g := api.Group("/users")
	g.GET("/agences/list", h.ListAgences)
	g.GET("/agences/:id", h.GetAgence)
	g.POST("/agences", cfg.can(security.CapAgencesManage), h.CreateAgence)
	g.PUT("/agences/:id", cfg.can(security.CapAgencesManage), h.UpdateAgence)
	RegisterCRUDRoutes(g, h, cfg.Policy, security.CapUsersRead, security.CapUsersManage)
}

func registerClientRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewClientHandler(base, cfg.Services.Clients)

	g := api.Group("/clients")
	RegisterCRUDRoutes(g, h, cfg.Policy, security.CapClientsRead, security.CapClientsWrite)
	g.POST("/:id/convert-to-client", cfg.can(security.CapClientsWrite), h.Convert)
}

func registerArticleRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewArticleHandler(base, cfg.Services.Catalog)

	g := api.Group("/articles")
	g.GET("/familles/list", cfg.can(security.CapArticlesRead), h.Familles)
	g.GET("/sous-familles/list", cfg.can(security.CapArticlesRead), h.SousFamilles)
	RegisterCRUDRoutes(g, h, cfg.Policy, security.CapArticlesRead, security.CapArticlesWrite)
	g.GET("/:id/mouvements", cfg.can(security.CapStockRead), h.Movements)
}

func registerStockRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewStockHandler(base, cfg.Services.Stock, cfg.Services.BCG)

	g := api.Group("/stock")
	g.GET("/where", cfg.can(security.CapStockRead), h.Where)
	g.GET("/seuils", cfg.can(security.CapStockRead), h.Seuils)
	g.GET("/mouvements", cfg.can(security.CapStockRead), h.Movements)
	g.POST("/transferts", cfg.can(security.CapStockTransfer), cfg.idempotent(), h.Transfer)
	g.POST("/inventaires", cfg.can(security.CapStockInventory), h.Inventory)

	g.GET("/bcg", cfg.can(security.CapBCGRead), h.ListBCG)
	g.GET("/bcg/:id", cfg.can(security.CapBCGRead), h.GetBCG)
	g.POST("/bcg", cfg.can(security.CapBCGWrite), cfg.idempotent(), h.CreateBCG)
	g.POST("/bcg/:id/retour", cfg.can(security.CapBCGWrite), h.RetourBCG)
}

func registerCommandeRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewCommandeHandler(base, cfg.Services.Orders)

	g := api.Group("/commandes")
	g.GET("", cfg.can(security.CapCommandesRead), h.List)
	g.GET("/:id", cfg.can(security.CapCommandesRead), h.Get)
	g.POST("", cfg.can(security.CapCommandesCreate), cfg.idempotent(), h.Create)
	g.PUT("/:id/valider", cfg.can(security.CapCommandesValidate), h.Valider)
	g.PUT("/:id/livrer", cfg.can(security.CapCommandesDeliver), h.Livrer)
	g.PUT("/:id/facturer", cfg.can(security.CapCommandesInvoice), h.Facturer)
	g.PUT("/:id/annuler", cfg.can(security.CapCommandesCancel), h.Annuler)

	f := api.Group("/factures")
	f.GET("", cfg.can(security.CapFacturesRead), h.ListFactures)
	f.GET("/:id", cfg.can(security.CapFacturesRead), h.GetFacture)
	f.PUT("/:id/declarer", cfg.can(security.CapFacturesWrite), h.Declarer)
	f.PUT("/:id/impayee", cfg.can(security.CapFacturesWrite), h.MarquerImpayee)
	f.POST("/:id/paiements", cfg.can(security.CapFacturesWrite), h.Paiement)
}

// HR routes only gate on the broad capabilities; self-service scoping is
// decided by the service against the caller's employee record.
func registerHRRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewHRHandler(base, cfg.Services.HR, cfg.CommissionQueue)

	g := api.Group("/rhep")
	g.GET("/employees", cfg.can(security.CapRHRead), h.ListEmployees)
	g.GET("/employees/me", h.Me)
	g.GET("/employees/:id", h.GetEmployee)
	g.POST("/employees", cfg.can(security.CapRHWrite), h.CreateEmployee)
	g.PUT("/employees/:id", cfg.can(security.CapRHWrite), h.UpdateEmployee)

	g.GET("/attendance", h.ListAttendance)
	g.POST("/attendance", cfg.can(security.CapRHWrite), h.RecordAttendance)

	g.GET("/leaves", h.ListLeaves)
	g.POST("/leaves", h.RequestLeave)
	g.PUT("/leaves/:id/approve", cfg.can(security.CapRHApprove), h.DecideLeave)
	g.PUT("/leaves/:id/cancel", h.CancelLeave)

	g.GET("/expenses", h.ListExpenses)
	g.POST("/expenses", h.SubmitExpense)
	g.PUT("/expenses/:id/approve", cfg.can(security.CapRHApprove), h.DecideExpense)
	g.PUT("/expenses/:id/rembourser", cfg.can(security.CapRHWrite), h.ReimburseExpense)

	g.GET("/commissions", h.ListCommissions)
	g.POST("/commissions/calc", cfg.can(security.CapCommissionsCalc), h.CalcCommissions)
}

func registerUploadRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewUploadHandler(base, cfg.Services.Upload)

	g := api.Group("/upload")
	g.POST("/logo", cfg.can(security.CapUpload), h.SaveLogo)
	g.GET("/logo", h.GetLogo)
}

// The portal is public: catalog and tracking need only the tenant, the
// order endpoints a portal session.
func registerPortalRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewPortalHandler(base, cfg.Services.Portal, cfg.PortalCookieSecure)
	otpLimit := middleware.RateLimit(cfg.OTPRateLimit.Requests, cfg.OTPRateLimit.Window, httprate.KeyByEndpoint)
	session := middleware.PortalSession(cfg.Services.Portal)

	g := api.Group("/portal")
	g.GET("/catalog/familles", h.Familles)
	g.GET("/catalog/sous-familles", h.SousFamilles)
	g.GET("/catalog/articles", h.Articles)
	g.GET("/catalog/articles/:id", h.Article)

	g.POST("/otp/request", otpLimit, h.RequestOTP)
	g.POST("/otp/verify", otpLimit, h.VerifyOTP)
	g.POST("/register", otpLimit, h.Register)
	g.GET("/tracking/:numero", h.Tracking)

	g.POST("/checkout", session, h.Checkout)
	g.GET("/clients/me/commandes", session, h.MyOrders)
	g.POST("/logout", session, h.Logout)
}
