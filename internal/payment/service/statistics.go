package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/pkg/db/retry"
	"github.com/smallbiznis/autotrade/pkg/money"
)

// GetStatistics folds payments created in [from, to] by method and currency.
// Refunds are included in the method and currency sums and also reported on
// their own.
func (s *Service) GetStatistics(ctx context.Context, from, to *time.Time) (domain.Statistics, error) {
	payments, err := retry.Value(ctx, s.retry, func(ctx context.Context) ([]domain.Payment, error) {
		return s.repo.ListCreatedBetween(ctx, s.db, from, to)
	})
	if err != nil {
		return domain.Statistics{}, s.dbErr(err, "load payment statistics")
	}
	return foldStatistics(payments), nil
}

func foldStatistics(payments []domain.Payment) domain.Statistics {
	stats := domain.Statistics{
		TotalPayments: int64(len(payments)),
		CountByMethod: lo.MapValues(
			lo.CountValuesBy(payments, func(p domain.Payment) domain.PaymentMethod { return p.PaymentMethod }),
			func(n int, _ domain.PaymentMethod) int64 { return int64(n) },
		),
		AmountByMethod:         map[domain.PaymentMethod]map[money.Currency]decimal.Decimal{},
		AmountByCurrency:       map[money.Currency]decimal.Decimal{},
		RefundAmountByCurrency: map[money.Currency]decimal.Decimal{},
	}

	for _, p := range payments {
		byCurrency, ok := stats.AmountByMethod[p.PaymentMethod]
		if !ok {
			byCurrency = map[money.Currency]decimal.Decimal{}
			stats.AmountByMethod[p.PaymentMethod] = byCurrency
		}
		byCurrency[p.Currency] = byCurrency[p.Currency].Add(p.Amount)
		stats.AmountByCurrency[p.Currency] = stats.AmountByCurrency[p.Currency].Add(p.Amount)
	}

	refunds := lo.Filter(payments, func(p domain.Payment, _ int) bool { return p.IsRefund() })
	stats.RefundCount = int64(len(refunds))
	for _, p := range refunds {
		stats.RefundAmountByCurrency[p.Currency] = stats.RefundAmountByCurrency[p.Currency].Add(p.Amount)
	}
	return stats
}
