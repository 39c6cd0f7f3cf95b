// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/pkg/money"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusFullyPaid     InvoiceStatus = "fully_paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartiallyPaid,
		InvoiceStatusFullyPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Invoice represents an issued invoice. Status is derived from payments once
// any exist; see the status package.
type Invoice struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceNumber string          `gorm:"size:50;not null;uniqueIndex:ux_invoices_invoice_number" json:"invoice_number"`
	CustomerID    snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	VehicleID     *snowflake.ID   `gorm:"index" json:"vehicle_id,omitempty"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"subtotal"`
	VATRate       decimal.Decimal `gorm:"column:vat_rate;type:decimal(5,2);not null;default:0" json:"vat_rate"`
	VATAmount     decimal.Decimal `gorm:"column:vat_amount;type:decimal(15,2);not null;default:0" json:"vat_amount"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_amount"`
	Currency      money.Currency  `gorm:"size:3;not null;index" json:"currency"`
	Status        InvoiceStatus   `gorm:"size:20;not null;index" json:"status"`
	DueDate       *time.Time      `gorm:"index" json:"due_date,omitempty"`
	PaymentTerms  string          `gorm:"size:255" json:"payment_terms,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	Items         []InvoiceItem   `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

func (i InvoiceItem) LineTotal() decimal.Decimal { return i.Total }

// InvoiceWithPayments is an invoice read together with its payment ledger.
type InvoiceWithPayments struct {
	Invoice
	Payments   []paymentdomain.Payment `json:"payments"`
	TotalPaid  decimal.Decimal         `json:"total_paid"`
	BalanceDue decimal.Decimal         `json:"balance_due"`
}

// NewInvoiceWithPayments derives the paid and outstanding amounts. The balance
// goes negative on overpayment.
func NewInvoiceWithPayments(inv Invoice, payments []paymentdomain.Payment) InvoiceWithPayments {
	if payments == nil {
		payments = []paymentdomain.Payment{}
	}
	paid := paymentdomain.TotalPaid(payments)
	return InvoiceWithPayments{
		Invoice:    inv,
		Payments:   payments,
		TotalPaid:  paid,
		BalanceDue: inv.TotalAmount.Sub(paid),
	}
}
