// Package domain holds what the business modules share: the transaction
// resolution used in database-per-tenant mode and small input helpers.
package domain

import (
	"context"
	"regexp"
	"strings"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/tenant"
	"autoerp/internal/core/tx"
)

// PhonePattern matches Moroccan phone numbers: +212 or 0 followed by nine digits.
var PhonePattern = regexp.MustCompile(`^(\+212|0)[0-9]{9}$`)

// NormalizePhone removes spaces, dots and dashes.
func NormalizePhone(s string) string {
	return strings.NewReplacer(" ", "", ".", "", "-", "").Replace(strings.TrimSpace(s))
}

// TxManager returns static when set, otherwise the tenant transaction manager stored in ctx.
func TxManager(ctx context.Context, static tx.Manager) (tx.Manager, error) {
	if static != nil {
		return static, nil
	}
	txm, err := tenant.GetTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	return txm, nil
}

// InTx runs fn in a transaction of the manager resolved by TxManager.
func InTx(ctx context.Context, static tx.Manager, fn func(ctx context.Context) error) error {
	txm, err := TxManager(ctx, static)
	if err != nil {
		return err
	}
	return txm.RunInTransaction(ctx, fn)
}

// Required returns a validation error naming field when value is blank.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.NewValidation(field+" is required").WithDetail("field", field)
	}
	return nil
}

// FirstError returns the first non-nil error.
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
