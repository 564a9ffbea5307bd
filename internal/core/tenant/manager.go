package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"autoerp/pkg/logger"
)

// ManagerConfig configures the per-tenant pools.
type ManagerConfig struct {
	DBUser     string
	DBPassword string
	SSLMode    string

	MaxConnsPerTenant int32
	MinConnsPerTenant int32
	ConnectTimeout    time.Duration

	MaxTotalPools     int           // 0 = unlimited
	PoolIdleTimeout   time.Duration // 0 = never evict
	HealthCheckPeriod time.Duration
}

// DefaultManagerConfig returns production defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConnsPerTenant: 10,
		MinConnsPerTenant: 1,
		ConnectTimeout:    10 * time.Second,
		MaxTotalPools:     100,
		PoolIdleTimeout:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// ManagedPool is a tenant pool with usage tracking.
type ManagedPool struct {
	pool     *pgxpool.Pool
	tenant   *Tenant
	lastUsed atomic.Int64
	refCount atomic.Int32
}

func (mp *ManagedPool) touch() {
	mp.lastUsed.Store(time.Now().Unix())
}

func (mp *ManagedPool) Pool() *pgxpool.Pool {
	return mp.pool
}

func (mp *ManagedPool) Tenant() *Tenant {
	return mp.tenant
}

func (mp *ManagedPool) AcquireRef() {
	mp.refCount.Add(1)
}

func (mp *ManagedPool) ReleaseRef() {
	mp.refCount.Add(-1)
}

func (mp *ManagedPool) inUse() bool {
	return mp.refCount.Load() > 0
}

func (mp *ManagedPool) idleSince(t int64) bool {
	return mp.lastUsed.Load() < t
}

// Manager lazily opens one pool per tenant and closes idle or unhealthy ones.
type Manager struct {
	config   ManagerConfig
	registry Registry

	mu        sync.Mutex // serializes pool creation
	pools     sync.Map   // tenantID -> *ManagedPool
	poolCount atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger
}

// NewManager starts the background eviction and health loops.
func NewManager(cfg ManagerConfig, registry Registry, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   cfg,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
		log:      log.WithComponent("tenant-manager"),
	}

	if cfg.PoolIdleTimeout > 0 {
		m.wg.Add(1)
		go m.loop(cfg.PoolIdleTimeout/2, m.evictIdlePools)
	}
	if cfg.HealthCheckPeriod > 0 {
		m.wg.Add(1)
		go m.loop(cfg.HealthCheckPeriod, m.checkPoolsHealth)
	}
	return m
}

// GetPool returns the pool of tenantID, opening it on first use.
func (m *Manager) GetPool(ctx context.Context, tenantID string) (*ManagedPool, error) {
	if val, ok := m.pools.Load(tenantID); ok {
		mp := val.(*ManagedPool)
		mp.touch()
		return mp, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.pools.Load(tenantID); ok {
		return val.(*ManagedPool), nil
	}
	return m.openPool(ctx, tenantID)
}

func (m *Manager) openPool(ctx context.Context, tenantID string) (*ManagedPool, error) {
	if m.config.MaxTotalPools > 0 && int(m.poolCount.Load()) >= m.config.MaxTotalPools {
		return nil, fmt.Errorf("%w (%d)", ErrMaxPoolLimit, m.config.MaxTotalPools)
	}

	t, err := m.registry.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("tenant lookup: %w", err)
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: status=%s", ErrTenantNotActive, t.Status)
	}

	poolCfg, err := pgxpool.ParseConfig(t.DSN(m.config.DBUser, m.config.DBPassword, m.config.SSLMode))
	if err != nil {
		return nil, fmt.Errorf("parse dsn for tenant %s: %w", t.Slug, err)
	}
	poolCfg.MaxConns = m.config.MaxConnsPerTenant
	poolCfg.MinConns = m.config.MinConnsPerTenant
	poolCfg.ConnConfig.ConnectTimeout = m.config.ConnectTimeout
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "autoerp:" + t.Slug

	createCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(createCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool for tenant %s: %w", t.Slug, err)
	}
	if err := pool.Ping(createCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping tenant %s: %w", t.Slug, err)
	}

	mp := &ManagedPool{pool: pool, tenant: t}
	mp.touch()
	m.pools.Store(tenantID, mp)
	m.poolCount.Add(1)

	m.log.Infow("opened tenant pool", "tenant", t.Slug, "db_name", t.DBName, "total_pools", m.poolCount.Load())
	return mp, nil
}

func (m *Manager) loop(every time.Duration, fn func()) {
	defer m.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (m *Manager) evictIdlePools() {
	threshold := time.Now().Add(-m.config.PoolIdleTimeout).Unix()
	m.pools.Range(func(key, value any) bool {
		mp := value.(*ManagedPool)
		if !mp.inUse() && mp.idleSince(threshold) {
			m.closePool(key.(string), mp, "idle timeout")
		}
		return true
	})
}

func (m *Manager) checkPoolsHealth() {
	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()

	m.pools.Range(func(key, value any) bool {
		mp := value.(*ManagedPool)
		if err := mp.pool.Ping(ctx); err != nil {
			m.log.Warnw("tenant pool health check failed", "tenant_id", key, "error", err)
			if !mp.inUse() {
				m.closePool(key.(string), mp, "health check failed")
			}
		}
		return true
	})
}

func (m *Manager) closePool(tenantID string, mp *ManagedPool, reason string) {
	if _, loaded := m.pools.LoadAndDelete(tenantID); !loaded {
		return
	}
	mp.pool.Close()
	m.poolCount.Add(-1)
	m.log.Infow("closed tenant pool", "tenant_id", tenantID, "reason", reason, "total_pools", m.poolCount.Load())
}

// Close stops the background loops and closes every pool.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
	m.pools.Range(func(key, value any) bool {
		m.closePool(key.(string), value.(*ManagedPool), "shutdown")
		return true
	})
}

// Stats reports pool usage.
type Stats struct {
	TotalPools    int `json:"total_pools"`
	TotalConns    int `json:"total_conns"`
	AcquiredConns int `json:"acquired_conns"`
}

func (m *Manager) Stats() Stats {
	s := Stats{TotalPools: int(m.poolCount.Load())}
	m.pools.Range(func(_, value any) bool {
		st := value.(*ManagedPool).pool.Stat()
		s.TotalConns += int(st.TotalConns())
		s.AcquiredConns += int(st.AcquiredConns())
		return true
	})
	return s
}

// Registry returns the tenant registry.
func (m *Manager) Registry() Registry {
	return m.registry
}

// ForEachActive runs fn for every active tenant with at most parallel calls in flight.
// The pool reference is held for the duration of fn. The first error cancels the rest.
func (m *Manager) ForEachActive(ctx context.Context, parallel int, fn func(ctx context.Context, mp *ManagedPool) error) error {
	tenants, err := m.registry.ListActive(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for _, t := range tenants {
		g.Go(func() error {
			mp, err := m.GetPool(gctx, t.ID)
			if err != nil {
				return fmt.Errorf("tenant %s: %w", t.Slug, err)
			}
			mp.AcquireRef()
			defer mp.ReleaseRef()
			return fn(WithTenant(gctx, t), mp)
		})
	}
	return g.Wait()
}

// Prewarm opens the pools of all active tenants.
func (m *Manager) Prewarm(ctx context.Context) error {
	return m.ForEachActive(ctx, 8, func(context.Context, *ManagedPool) error { return nil })
}
