package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/tenant"
	"autoerp/internal/core/tx"
)

func TestTxManager(t *testing.T) {
	_, err := TxManager(context.Background(), nil)
	assert.Equal(t, 500, apperror.GetHTTPStatus(err))

	ctx := tenant.WithTxManager(context.Background(), tx.Nop{})
	txm, err := TxManager(ctx, nil)
	assert.NoError(t, err)
	assert.NotNil(t, txm)

	called := false
	assert.NoError(t, InTx(context.Background(), tx.Nop{}, func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestRequired(t *testing.T) {
	assert.NoError(t, Required("nom", "Alami"))
	err := Required("nom", "  ")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	boom := errors.New("boom")
	assert.Same(t, boom, FirstError(nil, boom, errors.New("other")))
	assert.Nil(t, FirstError(nil, nil))
}

func TestPhonePattern(t *testing.T) {
	for _, ok := range []string{"0612345678", "+212612345678", NormalizePhone("06 12-34.56 78")} {
		assert.True(t, PhonePattern.MatchString(ok), ok)
	}
	for _, bad := range []string{"612345678", "+33612345678", "06123456789", ""} {
		assert.False(t, PhonePattern.MatchString(bad), bad)
	}
}
