// Package status derives an invoice's lifecycle status from its payments.
package status

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
)

type Input struct {
	TotalPaid   decimal.Decimal
	TotalAmount decimal.Decimal
	DueDate     *time.Time
	Today       time.Time
	Current     domain.InvoiceStatus
}

// Compute returns the status an invoice should carry for the given totals.
// Nothing is special-cased for cancelled invoices: a payment event moves them
// like any other.
func Compute(in Input) domain.InvoiceStatus {
	var next domain.InvoiceStatus
	switch {
	case in.TotalPaid.IsZero():
		if in.Current == domain.InvoiceStatusDraft {
			next = domain.InvoiceStatusDraft
		} else {
			next = domain.InvoiceStatusSent
		}
	case in.TotalPaid.GreaterThanOrEqual(in.TotalAmount):
		next = domain.InvoiceStatusFullyPaid
	default:
		next = domain.InvoiceStatusPartiallyPaid
	}

	if next != domain.InvoiceStatusFullyPaid && pastDue(in.DueDate, in.Today) {
		next = domain.InvoiceStatusOverdue
	}
	return next
}

// IsOverdue reports whether an invoice counts toward the overdue bucket.
func IsOverdue(dueDate *time.Time, today time.Time, current domain.InvoiceStatus) bool {
	if current == domain.InvoiceStatusFullyPaid || current == domain.InvoiceStatusCancelled {
		return false
	}
	return pastDue(dueDate, today)
}

// pastDue compares calendar days in UTC.
func pastDue(dueDate *time.Time, today time.Time) bool {
	if dueDate == nil {
		return false
	}
	return clock.StartOfDay(*dueDate).Before(clock.StartOfDay(today))
}
