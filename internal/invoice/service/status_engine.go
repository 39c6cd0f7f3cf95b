package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/invoice/status"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UpdateStatusFromPayments re-derives the invoice status from its payment
// ledger and due date. The read and the write share one transaction with the
// invoice row locked, and run under a per-invoice lock when one is configured.
func (s *Service) UpdateStatusFromPayments(ctx context.Context, id snowflake.ID) (domain.InvoiceWithPayments, error) {
	var (
		result  domain.InvoiceWithPayments
		from    domain.InvoiceStatus
		changed bool
	)
	err := s.guard.WithLock(ctx, statusLockKey(id), func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			item, err := s.repo.FindByIDForUpdate(ctx, tx, id)
			if err != nil {
				return s.dbErr(err, "find invoice")
			}
			if item == nil {
				return domain.ErrNotFound
			}

			payments, err := s.repo.ListPayments(ctx, tx, id)
			if err != nil {
				return s.dbErr(err, "list invoice payments")
			}

			next := status.Compute(status.Input{
				TotalPaid:   paymentdomain.TotalPaid(payments),
				TotalAmount: item.TotalAmount,
				DueDate:     item.DueDate,
				Today:       clock.Today(s.clock),
				Current:     item.Status,
			})
			if next != item.Status {
				from, changed = item.Status, true
				item.Status = next
				item.UpdatedAt = s.clock.Now()
				if err := s.repo.UpdateStatus(ctx, tx, item.ID, next, item.UpdatedAt); err != nil {
					return s.dbErr(err, "update invoice status")
				}
			}
			result = domain.NewInvoiceWithPayments(*item, payments)
			return nil
		})
	})
	if err != nil {
		return domain.InvoiceWithPayments{}, err
	}

	if changed {
		s.metrics.RecordStatusTransition(ctx, string(from), string(result.Status))
		s.log.Info("invoice status recomputed",
			zap.String("invoice_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(result.Status)),
			zap.String("total_paid", result.TotalPaid.String()),
			zap.String("balance_due", result.BalanceDue.String()),
		)
	}
	return result, nil
}

func (s *Service) RecomputeStatus(ctx context.Context, invoiceID snowflake.ID) error {
	_, err := s.UpdateStatusFromPayments(ctx, invoiceID)
	return err
}
