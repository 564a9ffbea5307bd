package hr_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/domain/hr"
	"autoerp/internal/domain/order"
	"autoerp/internal/infrastructure/storage/postgres"
)

// CommissionRepo implements hr.CommissionRepository.
type CommissionRepo struct {
	table *postgres.Table[hr.Commission]
}

func NewCommissionRepo() *CommissionRepo {
	return &CommissionRepo{table: postgres.NewTable[hr.Commission]("commissions", "commission")}
}

func (r *CommissionRepo) DeclaredFactures(ctx context.Context, from, to time.Time) ([]hr.CommissionSource, error) {
	q := postgres.Builder.Select("id AS facture_id", "commercial_id", "montant_ttc").
		From("factures").
		Where(squirrel.Eq{"statut": order.FactureDeclaree}).
		Where(squirrel.NotEq{"commercial_id": nil}).
		Where(squirrel.GtOrEq{"date_facture": from}).
		Where(squirrel.Lt{"date_facture": to}).
		OrderBy("date_facture", "numero")
	rows, err := postgres.SelectAll[hr.CommissionSource](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load declared factures: %w", err)
	}
	return rows, nil
}

// upsertSuffix refreshes calculated rows; the WHERE leaves paid ones alone,
// and a skipped row is not part of RETURNING.
const upsertSuffix = `ON CONFLICT (employee_id, facture_id, periode) DO UPDATE SET
		montant_facture = EXCLUDED.montant_facture,
		taux_commission = EXCLUDED.taux_commission,
		montant_commission = EXCLUDED.montant_commission,
		statut = EXCLUDED.statut,
		updated_at = EXCLUDED.updated_at
	WHERE commissions.statut <> 'payee'
	RETURNING `

func (r *CommissionRepo) Upsert(ctx context.Context, rows []hr.Commission) ([]hr.Commission, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	q := postgres.Builder.Insert("commissions").Columns(r.table.Columns...)
	for i := range rows {
		data := postgres.StructToMap(&rows[i])
		values := make([]any, len(r.table.Columns))
		for j, c := range r.table.Columns {
			values[j] = data[c]
		}
		q = q.Values(values...)
	}
	q = q.Suffix(upsertSuffix + joinColumns(r.table.Columns))
	saved, err := postgres.SelectAll[hr.Commission](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("upsert commissions: %w", err)
	}
	return saved, nil
}

func (r *CommissionRepo) List(ctx context.Context, f hr.CommissionFilter) ([]hr.Commission, int64, error) {
	q := r.table.Select()
	if f.EmployeeID != nil {
		q = q.Where(squirrel.Eq{"employee_id": *f.EmployeeID})
	}
	if f.Periode != "" {
		q = q.Where(squirrel.Eq{"periode": f.Periode})
	}
	if f.Statut != "" {
		q = q.Where(squirrel.Eq{"statut": f.Statut})
	}
	return postgres.Paginate[hr.Commission](ctx, q, f.Page, "periode DESC", "created_at")
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += "commissions." + c
	}
	return out
}

var _ hr.CommissionRepository = (*CommissionRepo)(nil)
