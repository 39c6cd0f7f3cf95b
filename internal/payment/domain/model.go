package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/pkg/money"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck, PaymentMethodCreditCard, PaymentMethodOther:
		return true
	}
	return false
}

// RefundTransactionPrefix marks payments created by a refund.
const RefundTransactionPrefix = "REFUND-"

// Payment is a signed movement against an invoice. Negative amounts are refunds.
type Payment struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID     snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency      money.Currency  `gorm:"size:3;not null;index" json:"currency"`
	PaymentDate   time.Time       `gorm:"not null;index" json:"payment_date"`
	PaymentMethod PaymentMethod   `gorm:"size:20;not null;index" json:"payment_method"`
	TransactionID *string         `gorm:"size:255" json:"transaction_id,omitempty"`
	Notes         *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy     *string         `gorm:"size:255" json:"created_by,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

func (p Payment) IsRefund() bool {
	return p.Amount.IsNegative()
}

// TotalPaid sums payment amounts, refunds included.
func TotalPaid(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
