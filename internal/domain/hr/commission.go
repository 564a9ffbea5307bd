package hr

import (
	"context"
	"fmt"

	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/core/types"
	"autoerp/internal/domain"
	"autoerp/pkg/logger"
)

// CalcCommissions computes the commissions of periode (YYYY-MM) from the
// factures declared in that month. Each facture yields one row per
// commercial employee; running it again refreshes rows that are not paid.
func (s *Service) CalcCommissions(ctx context.Context, periode string) (*CalcResult, error) {
	if err := s.policy.Authorize(ctx, security.CapCommissionsCalc, nil); err != nil {
		return nil, err
	}
	from, to, err := ParsePeriode(periode)
	if err != nil {
		return nil, err
	}

	result := &CalcResult{Periode: periode}
	err = domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		sources, err := s.commissions.DeclaredFactures(ctx, from, to)
		if err != nil {
			return fmt.Errorf("declared factures: %w", err)
		}
		if len(sources) == 0 {
			return nil
		}

		userIDs := make([]id.ID, 0, len(sources))
		for _, src := range sources {
			userIDs = append(userIDs, src.CommercialID)
		}
		employees, err := s.employees.ByUserIDs(ctx, userIDs)
		if err != nil {
			return fmt.Errorf("commercial employees: %w", err)
		}
		byUser := make(map[id.ID]id.ID, len(employees))
		for _, e := range employees {
			byUser[e.UserID] = e.ID
		}

		rows := make([]Commission, 0, len(sources))
		for _, src := range sources {
			employeeID, ok := byUser[src.CommercialID]
			if !ok {
				continue
			}
			rate := Rate(src.MontantTTC)
			rows = append(rows, Commission{
				Base:              entity.NewBase(),
				EmployeeID:        employeeID,
				Periode:           periode,
				FactureID:         src.FactureID,
				MontantFacture:    src.MontantTTC,
				TauxCommission:    rate,
				MontantCommission: types.Round2(types.Percent(src.MontantTTC, rate)),
				Statut:            CommissionCalculee,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		saved, err := s.commissions.Upsert(ctx, rows)
		if err != nil {
			return fmt.Errorf("save commissions: %w", err)
		}
		result.Commissions = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Commissions == nil {
		result.Commissions = []Commission{}
	}
	result.Count = len(result.Commissions)
	logger.Info(ctx, "commissions calculated", "periode", periode, "count", result.Count)
	return result, nil
}

func (s *Service) ListCommissions(ctx context.Context, f CommissionFilter) (entity.List[Commission], error) {
	if f.Periode != "" && !ValidPeriode(f.Periode) {
		_, _, err := ParsePeriode(f.Periode)
		return entity.List[Commission]{}, err
	}
	own, err := s.selfScope(ctx)
	if err != nil {
		return entity.List[Commission]{}, err
	}
	if own != nil {
		f.EmployeeID = own
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.commissions.List(ctx, f)
	if err != nil {
		return entity.List[Commission]{}, fmt.Errorf("list commissions: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}
