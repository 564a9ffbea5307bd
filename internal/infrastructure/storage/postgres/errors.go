package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"autoerp/internal/core/apperror"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgLockNotAvailable    = "55P03"
)

// IsNoRows reports whether err is pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// UniqueConstraint returns the violated unique constraint name, or "".
func UniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// Duplicates maps unique constraint names to the AppError returned for them.
type Duplicates map[string]func() *apperror.AppError

// TranslateError converts driver errors into AppErrors:
// unique violations via dup, foreign key and check violations to 400,
// lock timeouts to 409. Other errors are returned unchanged.
func TranslateError(err error, dup Duplicates) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if f, ok := dup[pgErr.ConstraintName]; ok {
			return f().WithCause(err)
		}
		return apperror.NewConflict("duplicate entry").WithCode(apperror.CodeDuplicate).
			WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewValidation("invalid reference").WithCode("FOREIGN_KEY_ERROR").
			WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
	case pgCheckViolation:
		return apperror.NewValidation("constraint violated").
			WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
	case pgLockNotAvailable:
		return apperror.NewConflict("record is locked by another operation, retry").WithCause(err)
	}
	return err
}
