package jobs

import (
	"context"

	"autoerp/internal/core/tenant"
	"autoerp/internal/infrastructure/storage/postgres"
)

// Scope runs fn with ctx bound to the database of tenantID.
type Scope func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error

// ActiveTenants lists the ids of the tenants a fan-out task covers.
type ActiveTenants func(ctx context.Context) ([]string, error)

// ManagerScope resolves tenant pools through the pool manager.
func ManagerScope(m *tenant.Manager) Scope {
	return func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
		mp, err := m.GetPool(ctx, tenantID)
		if err != nil {
			return err
		}
		mp.AcquireRef()
		defer mp.ReleaseRef()
		return fn(postgres.WithTenantPool(ctx, mp))
	}
}

// RegistryTenants lists active tenants from the meta registry.
func RegistryTenants(r tenant.Registry) ActiveTenants {
	return func(ctx context.Context) ([]string, error) {
		tenants, err := r.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(tenants))
		for _, t := range tenants {
			ids = append(ids, t.ID)
		}
		return ids, nil
	}
}
