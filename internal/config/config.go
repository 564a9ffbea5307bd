// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"autoerp/internal/core/tenant"
)

// Config is shared by cmd/server, cmd/worker and the CLIs.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	HTTPIdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOrigins         []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	MetaDatabaseURL       string        `envconfig:"META_DATABASE_URL" required:"true"`
	TenantDBUser          string        `envconfig:"TENANT_DB_USER" required:"true"`
	TenantDBPassword      string        `envconfig:"TENANT_DB_PASSWORD" required:"true"`
	TenantDBSSLMode       string        `envconfig:"TENANT_DB_SSLMODE" default:"disable"`
	TenantMaxPools        int           `envconfig:"TENANT_MAX_POOLS" default:"100"`
	TenantMaxConnsPerPool int32         `envconfig:"TENANT_MAX_CONNS_PER_POOL" default:"10"`
	TenantPoolIdleTimeout time.Duration `envconfig:"TENANT_POOL_IDLE_TIMEOUT" default:"30m"`
	PrewarmPools          bool          `envconfig:"PREWARM_POOLS" default:"false"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL  time.Duration `envconfig:"JWT_ACCESS_TTL" default:"24h"`
	RefreshTokenTTL time.Duration `envconfig:"JWT_REFRESH_TTL" default:"168h"`

	OTPTTL             time.Duration `envconfig:"PORTAL_OTP_TTL" default:"5m"`
	OTPMaxAttempts     int           `envconfig:"PORTAL_OTP_MAX_ATTEMPTS" default:"5"`
	PortalSessionTTL   time.Duration `envconfig:"PORTAL_SESSION_TTL" default:"24h"`
	PortalCookieSecure bool          `envconfig:"PORTAL_COOKIE_SECURE" default:"false"`

	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"300"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	OTPRateLimit      int           `envconfig:"OTP_RATE_LIMIT" default:"5"`
	OTPRateWindow     time.Duration `envconfig:"OTP_RATE_WINDOW" default:"15m"`

	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	UploadDir     string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	UploadMaxSize int64  `envconfig:"UPLOAD_MAX_SIZE" default:"2097152"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"4"`
	CommissionCron    string `envconfig:"COMMISSION_CRON" default:"0 2 1 * *"`
}

// IsDevelopment reports whether APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// TenantManager returns the pool manager settings.
func (c Config) TenantManager() tenant.ManagerConfig {
	mc := tenant.DefaultManagerConfig()
	mc.DBUser = c.TenantDBUser
	mc.DBPassword = c.TenantDBPassword
	mc.SSLMode = c.TenantDBSSLMode
	mc.MaxTotalPools = c.TenantMaxPools
	mc.MaxConnsPerTenant = c.TenantMaxConnsPerPool
	mc.PoolIdleTimeout = c.TenantPoolIdleTimeout
	return mc
}

// Load reads .env (development only, when present) and then the environment.
func Load() (Config, error) {
	if env := os.Getenv("APP_ENV"); env == "" || strings.EqualFold(env, "development") {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !c.IsDevelopment() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters outside development")
	}
	if c.OTPMaxAttempts < 1 {
		return errors.New("PORTAL_OTP_MAX_ATTEMPTS must be positive")
	}
	if c.UploadMaxSize <= 0 {
		return errors.New("UPLOAD_MAX_SIZE must be positive")
	}
	return nil
}
