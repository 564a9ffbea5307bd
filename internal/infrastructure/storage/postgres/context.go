package postgres

import (
	"context"
	"fmt"

	"autoerp/internal/core/tenant"
)

// MustGetTxManager returns the tenant *TxManager stored in ctx by the tenant middleware.
// Repositories use it for GetQuerier; domain code depends on tx.Manager only.
func MustGetTxManager(ctx context.Context) *TxManager {
	txm := tenant.MustGetTxManager(ctx)
	pgTxm, ok := txm.(*TxManager)
	if !ok || pgTxm == nil {
		panic(fmt.Sprintf("TxManager in context has unexpected type: %T", txm))
	}
	return pgTxm
}

// WithTenantPool prepares ctx for repository calls against mp: the pool, a
// TxManager over it and the tenant itself.
func WithTenantPool(ctx context.Context, mp *tenant.ManagedPool) context.Context {
	ctx = tenant.WithPool(ctx, mp.Pool())
	ctx = tenant.WithTxManager(ctx, NewTxManagerFromRawPool(mp.Pool()))
	return tenant.WithTenant(ctx, mp.Tenant())
}
