package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/internal/validator"
	"github.com/smallbiznis/autotrade/pkg/db/retry"
	"github.com/smallbiznis/autotrade/pkg/money"
)

var hundred = decimal.NewFromInt(100)

// CreateQuickPayment records a payment in the invoice's own currency.
func (s *Service) CreateQuickPayment(ctx context.Context, req domain.QuickPaymentRequest) (domain.Payment, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Payment{}, err
	}
	invoiceID, err := parseRef(req.InvoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Payment{}, err
	}
	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Payment{}, err
	}

	return s.record(ctx, domain.Payment{
		InvoiceID:     invoice.ID,
		Amount:        req.Amount,
		Currency:      invoice.Currency,
		PaymentDate:   s.paymentDate(req.PaymentDate),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		TransactionID: trimmed(req.TransactionID),
		Notes:         req.Notes,
		CreatedBy:     trimmed(req.CreatedBy),
	})
}

// ProcessFullPayment pays exactly the outstanding balance.
func (s *Service) ProcessFullPayment(ctx context.Context, req domain.FullPaymentRequest) (domain.Payment, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Payment{}, err
	}
	invoiceID, err := parseRef(req.InvoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Payment{}, err
	}
	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Payment{}, err
	}

	payments, err := s.repo.ListByInvoice(ctx, s.db, invoice.ID)
	if err != nil {
		return domain.Payment{}, s.dbErr(err, "list invoice payments")
	}
	balance := invoice.TotalAmount.Sub(domain.TotalPaid(payments))
	if !balance.IsPositive() {
		return domain.Payment{}, domain.ErrAlreadyFullyPaid
	}

	return s.record(ctx, domain.Payment{
		InvoiceID:     invoice.ID,
		Amount:        balance,
		Currency:      invoice.Currency,
		PaymentDate:   s.paymentDate(req.PaymentDate),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		TransactionID: trimmed(req.TransactionID),
		Notes:         req.Notes,
		CreatedBy:     trimmed(req.CreatedBy),
	})
}

// CreateRefund books a negative payment against the original payment's
// invoice. Only the original amount bounds the refund; earlier refunds of the
// same payment are not subtracted.
func (s *Service) CreateRefund(ctx context.Context, req domain.RefundRequest) (domain.Payment, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Payment{}, err
	}
	originalID, err := parseRef(req.PaymentID, domain.ErrInvalidID)
	if err != nil {
		return domain.Payment{}, err
	}

	original, err := retry.Value(ctx, s.retry, func(ctx context.Context) (*domain.Payment, error) {
		return s.repo.FindByID(ctx, s.db, originalID)
	})
	if err != nil {
		return domain.Payment{}, s.dbErr(err, "find payment")
	}
	if original == nil {
		return domain.Payment{}, domain.ErrNotFound
	}

	invoice, err := s.invoices.FindByID(ctx, s.db, original.InvoiceID)
	if err != nil {
		return domain.Payment{}, s.dbErr(err, "find invoice")
	}
	if invoice == nil {
		return domain.Payment{}, domain.ErrRefundOrphan
	}

	amount := money.Round2(req.Amount.Abs())
	if amount.IsZero() {
		return domain.Payment{}, domain.ErrInvalidRefund
	}
	if amount.GreaterThan(original.Amount) {
		return domain.Payment{}, domain.ErrRefundExceedsTotal
	}

	transactionID := domain.RefundTransactionPrefix + original.ID.String()
	notes := fmt.Sprintf("Refund for payment %s", original.ID)
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		notes += ": " + reason
	}

	return s.record(ctx, domain.Payment{
		InvoiceID:     invoice.ID,
		Amount:        amount.Neg(),
		Currency:      original.Currency,
		PaymentDate:   s.paymentDate(nil),
		PaymentMethod: original.PaymentMethod,
		TransactionID: &transactionID,
		Notes:         &notes,
		CreatedBy:     trimmed(&req.UserID),
	})
}

func (s *Service) GetInvoicePaymentSummary(ctx context.Context, invoiceID string) (domain.InvoicePaymentSummary, error) {
	id, err := parseRef(invoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.InvoicePaymentSummary{}, err
	}
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return domain.InvoicePaymentSummary{}, err
	}

	payments, err := retry.Value(ctx, s.retry, func(ctx context.Context) ([]domain.Payment, error) {
		return s.repo.ListByInvoice(ctx, s.db, invoice.ID)
	})
	if err != nil {
		return domain.InvoicePaymentSummary{}, s.dbErr(err, "list invoice payments")
	}
	if payments == nil {
		payments = []domain.Payment{}
	}

	paid := domain.TotalPaid(payments)
	return domain.InvoicePaymentSummary{
		InvoiceID:         invoice.ID,
		InvoiceNumber:     invoice.InvoiceNumber,
		Currency:          invoice.Currency,
		InvoiceAmount:     invoice.TotalAmount,
		TotalPaid:         paid,
		BalanceDue:        invoice.TotalAmount.Sub(paid),
		PaymentPercentage: paymentPercentage(paid, invoice.TotalAmount),
		PaymentCount:      len(payments),
		Payments:          payments,
	}, nil
}

// paymentPercentage is not capped, so overpayment reports above 100.
func paymentPercentage(paid, amount decimal.Decimal) decimal.Decimal {
	if amount.IsZero() {
		return decimal.Zero
	}
	return money.Round2(paid.Div(amount).Mul(hundred))
}
