package postgres

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/apperror"
)

func TestTranslateError_MappedDuplicate(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "articles_sku_key"}
	err := TranslateError(fmt.Errorf("insert: %w", pgErr), Duplicates{
		"articles_sku_key": func() *apperror.AppError {
			return apperror.NewDuplicate("article", "sku", "FLT-001").WithCode("DUPLICATE_SKU")
		},
	})

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "DUPLICATE_SKU", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	assert.Equal(t, "articles_sku_key", UniqueConstraint(err))
}

func TestTranslateError_Unmapped(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unique", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "x"}, http.StatusConflict},
		{"foreign key", &pgconn.PgError{Code: pgForeignKeyViolation}, http.StatusBadRequest},
		{"check", &pgconn.PgError{Code: pgCheckViolation}, http.StatusBadRequest},
		{"lock timeout", &pgconn.PgError{Code: pgLockNotAvailable}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, apperror.GetHTTPStatus(TranslateError(tt.err, nil)))
		})
	}
}

func TestTranslateError_PassThrough(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, TranslateError(plain, nil))
	assert.Nil(t, TranslateError(nil, nil))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}
