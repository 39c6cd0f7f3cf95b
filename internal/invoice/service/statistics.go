package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/invoice/status"
	"github.com/smallbiznis/autotrade/pkg/db/retry"
	"github.com/smallbiznis/autotrade/pkg/money"
)

// GetStatistics folds invoices created in [from, to] by status and currency.
// Amounts in different currencies are never added together.
func (s *Service) GetStatistics(ctx context.Context, from, to *time.Time) (domain.Statistics, error) {
	invoices, err := retry.Value(ctx, s.retry, func(ctx context.Context) ([]domain.Invoice, error) {
		return s.repo.ListCreatedBetween(ctx, s.db, from, to)
	})
	if err != nil {
		return domain.Statistics{}, s.dbErr(err, "load invoice statistics")
	}
	return foldStatistics(invoices, clock.Today(s.clock)), nil
}

func foldStatistics(invoices []domain.Invoice, today time.Time) domain.Statistics {
	stats := domain.Statistics{
		TotalInvoices: int64(len(invoices)),
		CountByStatus: lo.MapValues(
			lo.CountValuesBy(invoices, func(inv domain.Invoice) domain.InvoiceStatus { return inv.Status }),
			func(n int, _ domain.InvoiceStatus) int64 { return int64(n) },
		),
		AmountByStatus:          map[domain.InvoiceStatus]map[money.Currency]decimal.Decimal{},
		AmountByCurrency:        map[money.Currency]decimal.Decimal{},
		OverdueAmountByCurrency: map[money.Currency]decimal.Decimal{},
	}

	for _, inv := range invoices {
		byCurrency, ok := stats.AmountByStatus[inv.Status]
		if !ok {
			byCurrency = map[money.Currency]decimal.Decimal{}
			stats.AmountByStatus[inv.Status] = byCurrency
		}
		byCurrency[inv.Currency] = byCurrency[inv.Currency].Add(inv.TotalAmount)
		stats.AmountByCurrency[inv.Currency] = stats.AmountByCurrency[inv.Currency].Add(inv.TotalAmount)
	}

	overdue := lo.Filter(invoices, func(inv domain.Invoice, _ int) bool {
		return status.IsOverdue(inv.DueDate, today, inv.Status)
	})
	stats.OverdueCount = int64(len(overdue))
	for _, inv := range overdue {
		stats.OverdueAmountByCurrency[inv.Currency] = stats.OverdueAmountByCurrency[inv.Currency].Add(inv.TotalAmount)
	}
	return stats
}
