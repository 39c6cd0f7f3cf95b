package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"github.com/smallbiznis/autotrade/pkg/money"
)

type ListInvoiceRequest struct {
	Search      string
	Status      string
	CustomerID  string
	VehicleID   string
	Currency    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	DueFrom     *time.Time
	DueTo       *time.Time
	Page        pagination.Page
}

type ListInvoiceFilter struct {
	Search      string
	Status      InvoiceStatus
	CustomerID  *snowflake.ID
	VehicleID   *snowflake.ID
	Currency    money.Currency
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	DueFrom     *time.Time
	DueTo       *time.Time
}

type ListInvoiceResponse struct {
	Invoices   []Invoice       `json:"invoices"`
	Pagination pagination.Info `json:"pagination"`
}

type InvoiceItemInput struct {
	Description string           `json:"description" validate:"required"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Total       *decimal.Decimal `json:"total"`
}

// CreateInvoiceRequest carries either line items, from which totals are
// computed, or already aggregated totals.
type CreateInvoiceRequest struct {
	InvoiceNumber string             `json:"invoice_number" validate:"max=50"`
	CustomerID    string             `json:"customer_id" validate:"required"`
	VehicleID     string             `json:"vehicle_id"`
	Currency      string             `json:"currency"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	VATRate       decimal.Decimal    `json:"vat_rate"`
	VATAmount     decimal.Decimal    `json:"vat_amount"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	DueDate       *time.Time         `json:"due_date"`
	PaymentTerms  string             `json:"payment_terms" validate:"max=255"`
	Notes         string             `json:"notes"`
	Items         []InvoiceItemInput `json:"items" validate:"dive"`
}

// UpdateInvoiceRequest only touches fields that are set. It never recomputes
// the status from payments.
type UpdateInvoiceRequest struct {
	CustomerID   *string          `json:"customer_id"`
	VehicleID    *string          `json:"vehicle_id"`
	Currency     *string          `json:"currency"`
	Subtotal     *decimal.Decimal `json:"subtotal"`
	VATRate      *decimal.Decimal `json:"vat_rate"`
	VATAmount    *decimal.Decimal `json:"vat_amount"`
	TotalAmount  *decimal.Decimal `json:"total_amount"`
	Status       *string          `json:"status"`
	DueDate      *time.Time       `json:"due_date"`
	PaymentTerms *string          `json:"payment_terms"`
	Notes        *string          `json:"notes"`
}

type VehicleSaleRequest struct {
	CustomerID string           `json:"customer_id" validate:"required"`
	VehicleID  string           `json:"vehicle_id" validate:"required"`
	SalePrice  *decimal.Decimal `json:"sale_price"`
	Currency   string           `json:"currency"`
	Notes      string           `json:"notes"`
}

type Statistics struct {
	TotalInvoices           int64                                                `json:"total_invoices"`
	CountByStatus           map[InvoiceStatus]int64                              `json:"count_by_status"`
	AmountByStatus          map[InvoiceStatus]map[money.Currency]decimal.Decimal `json:"amount_by_status"`
	AmountByCurrency        map[money.Currency]decimal.Decimal                   `json:"amount_by_currency"`
	OverdueCount            int64                                                `json:"overdue_count"`
	OverdueAmountByCurrency map[money.Currency]decimal.Decimal                   `json:"overdue_amount_by_currency"`
}

type Service interface {
	paymentdomain.StatusRecomputer

	GenerateInvoiceNumber(ctx context.Context) string
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	CreateFromVehicleSale(ctx context.Context, req VehicleSaleRequest) (Invoice, error)
	GetByID(ctx context.Context, id string) (InvoiceWithPayments, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	ListOverdue(ctx context.Context, page pagination.Page) (ListInvoiceResponse, error)
	Update(ctx context.Context, id string, req UpdateInvoiceRequest) (Invoice, error)
	Send(ctx context.Context, id string) (Invoice, error)
	Cancel(ctx context.Context, id string) (Invoice, error)
	Delete(ctx context.Context, id string) error
	UpdateStatusFromPayments(ctx context.Context, id snowflake.ID) (InvoiceWithPayments, error)
	GetStatistics(ctx context.Context, from, to *time.Time) (Statistics, error)
}

var (
	ErrInvalidID         = ierr.NewError("invalid invoice id").Mark(ierr.ErrValidation)
	ErrInvalidCustomerID = ierr.NewError("invalid customer id").Mark(ierr.ErrValidation)
	ErrInvalidVehicleID  = ierr.NewError("invalid vehicle id").Mark(ierr.ErrValidation)
	ErrInvalidCurrency   = ierr.NewError("currency must be one of: AED, USD, CAD").Mark(ierr.ErrValidation)
	ErrInvalidStatus     = ierr.NewError("status must be one of: draft, sent, partially_paid, fully_paid, overdue, cancelled").Mark(ierr.ErrValidation)
	ErrInvalidAmount     = ierr.NewError("amounts cannot be negative").Mark(ierr.ErrValidation)
	ErrInvalidVATRate    = ierr.NewError("vat_rate must be between 0 and 100").Mark(ierr.ErrValidation)
	ErrInvalidQuantity   = ierr.NewError("item quantity must be greater than zero").Mark(ierr.ErrValidation)
	ErrInvalidSalePrice  = ierr.NewError("vehicle has no sale price").Mark(ierr.ErrValidation)
	ErrNotFound          = ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	ErrCustomerNotFound  = ierr.NewError("customer not found").Mark(ierr.ErrNotFound)
	ErrVehicleNotFound   = ierr.NewError("vehicle not found").Mark(ierr.ErrNotFound)
	ErrNumberExists      = ierr.NewError("invoice with this number already exists").Mark(ierr.ErrAlreadyExists)
	ErrNotDraft          = ierr.NewError("only draft invoices can be sent").Mark(ierr.ErrInvalidOperation)
	ErrAlreadyCancelled  = ierr.NewError("invoice is already cancelled").Mark(ierr.ErrInvalidOperation)
	ErrHasPayments       = ierr.NewError("invoice has payments and cannot be deleted").Mark(ierr.ErrConflict)
)
