package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"github.com/smallbiznis/autotrade/pkg/money"
)

type CreatePaymentRequest struct {
	InvoiceID     string          `json:"invoice_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentDate   *time.Time      `json:"payment_date"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
	TransactionID *string         `json:"transaction_id"`
	Notes         *string         `json:"notes"`
	CreatedBy     *string         `json:"created_by"`
}

// UpdatePaymentRequest only touches fields that are set. The invoice a payment
// belongs to cannot be changed.
type UpdatePaymentRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Currency      *string          `json:"currency"`
	PaymentDate   *time.Time       `json:"payment_date"`
	PaymentMethod *string          `json:"payment_method"`
	TransactionID *string          `json:"transaction_id"`
	Notes         *string          `json:"notes"`
}

// QuickPaymentRequest records a payment in the invoice's own currency.
type QuickPaymentRequest struct {
	InvoiceID     string          `json:"invoice_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
	PaymentDate   *time.Time      `json:"payment_date"`
	TransactionID *string         `json:"transaction_id"`
	Notes         *string         `json:"notes"`
	CreatedBy     *string         `json:"created_by"`
}

// FullPaymentRequest settles the invoice's remaining balance.
type FullPaymentRequest struct {
	InvoiceID     string     `json:"invoice_id" validate:"required"`
	PaymentMethod string     `json:"payment_method" validate:"required"`
	PaymentDate   *time.Time `json:"payment_date"`
	TransactionID *string    `json:"transaction_id"`
	Notes         *string    `json:"notes"`
	CreatedBy     *string    `json:"created_by"`
}

type RefundRequest struct {
	PaymentID string          `json:"payment_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	UserID    string          `json:"user_id"`
}

type ListPaymentRequest struct {
	Search      string
	InvoiceID   string
	Method      string
	Currency    string
	PaymentFrom *time.Time
	PaymentTo   *time.Time
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        pagination.Page
}

type ListPaymentFilter struct {
	Search      string
	InvoiceID   *snowflake.ID
	Method      PaymentMethod
	Currency    money.Currency
	PaymentFrom *time.Time
	PaymentTo   *time.Time
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListPaymentResponse struct {
	Payments   []Payment       `json:"payments"`
	Pagination pagination.Info `json:"pagination"`
}

type InvoicePaymentSummary struct {
	InvoiceID         snowflake.ID    `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	Currency          money.Currency  `json:"currency"`
	InvoiceAmount     decimal.Decimal `json:"invoice_amount"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	BalanceDue        decimal.Decimal `json:"balance_due"`
	PaymentPercentage decimal.Decimal `json:"payment_percentage"`
	PaymentCount      int             `json:"payment_count"`
	Payments          []Payment       `json:"payments"`
}

type Statistics struct {
	TotalPayments          int64                                                `json:"total_payments"`
	CountByMethod          map[PaymentMethod]int64                              `json:"count_by_method"`
	AmountByMethod         map[PaymentMethod]map[money.Currency]decimal.Decimal `json:"amount_by_method"`
	AmountByCurrency       map[money.Currency]decimal.Decimal                   `json:"amount_by_currency"`
	RefundCount            int64                                                `json:"refund_count"`
	RefundAmountByCurrency map[money.Currency]decimal.Decimal                   `json:"refund_amount_by_currency"`
}

type Service interface {
	Create(ctx context.Context, req CreatePaymentRequest) (Payment, error)
	GetByID(ctx context.Context, id string) (Payment, error)
	List(ctx context.Context, req ListPaymentRequest) (ListPaymentResponse, error)
	Update(ctx context.Context, id string, req UpdatePaymentRequest) (Payment, error)
	Delete(ctx context.Context, id string) error

	CreateQuickPayment(ctx context.Context, req QuickPaymentRequest) (Payment, error)
	ProcessFullPayment(ctx context.Context, req FullPaymentRequest) (Payment, error)
	CreateRefund(ctx context.Context, req RefundRequest) (Payment, error)
	GetInvoicePaymentSummary(ctx context.Context, invoiceID string) (InvoicePaymentSummary, error)
	GetStatistics(ctx context.Context, from, to *time.Time) (Statistics, error)
}

// StatusRecomputer refreshes an invoice's derived status after its payments change.
type StatusRecomputer interface {
	RecomputeStatus(ctx context.Context, invoiceID snowflake.ID) error
}

var (
	ErrInvalidID          = ierr.NewError("invalid payment id").Mark(ierr.ErrValidation)
	ErrInvalidInvoiceID   = ierr.NewError("invalid invoice id").Mark(ierr.ErrValidation)
	ErrInvalidAmount      = ierr.NewError("amount must not be zero").Mark(ierr.ErrValidation)
	ErrInvalidCurrency    = ierr.NewError("currency must be one of: AED, USD, CAD").Mark(ierr.ErrValidation)
	ErrInvalidMethod      = ierr.NewError("payment_method must be one of: cash, bank_transfer, check, credit_card, other").Mark(ierr.ErrValidation)
	ErrInvalidRefund      = ierr.NewError("refund amount must be greater than zero").Mark(ierr.ErrValidation)
	ErrNotFound           = ierr.NewError("payment not found").Mark(ierr.ErrNotFound)
	ErrInvoiceNotFound    = ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	ErrAlreadyFullyPaid   = ierr.NewError("Invoice is already fully paid").Mark(ierr.ErrInvalidOperation)
	ErrRefundExceedsTotal = ierr.NewError("Refund amount cannot exceed original payment amount").Mark(ierr.ErrInvalidOperation)
	ErrRefundOrphan       = ierr.NewError("original payment is not linked to an invoice").Mark(ierr.ErrInvalidOperation)
)
