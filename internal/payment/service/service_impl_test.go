package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/config"
	customerrepo "github.com/smallbiznis/autotrade/internal/customer/repository"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	invoicedomain "github.com/smallbiznis/autotrade/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/autotrade/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/autotrade/internal/invoice/service"
	"github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/internal/payment/repository"
	"github.com/smallbiznis/autotrade/internal/testutil"
	vehiclerepo "github.com/smallbiznis/autotrade/internal/vehicle/repository"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"github.com/smallbiznis/autotrade/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc      domain.Service
	invoices invoicedomain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	node     *snowflake.Node
	customer snowflake.ID
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	node := testutil.MustNode(t)
	clk := testutil.NewClock()
	billing := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	invRepo := invoicerepo.Provide()

	invoices := invoiceservice.New(invoiceservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      invRepo,
		Customers: customerrepo.Provide(),
		Vehicles:  vehiclerepo.Provide(),
		Billing:   billing,
	})
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       repository.Provide(),
		Invoices:   invRepo,
		Recomputer: invoices,
		Billing:    billing,
	})

	customer := testutil.SeedCustomer(t, db, node, "buyer@example.com")
	return testEnv{svc: svc, invoices: invoices, db: db, clock: clk, node: node, customer: customer.ID}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e testEnv) createInvoice(t *testing.T, currency, total string, due *time.Time) invoicedomain.Invoice {
	t.Helper()
	inv, err := e.invoices.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		CustomerID:  e.customer.String(),
		Currency:    currency,
		Subtotal:    dec(total),
		TotalAmount: dec(total),
		DueDate:     due,
	})
	require.NoError(t, err)
	return inv
}

func (e testEnv) pay(t *testing.T, invoiceID snowflake.ID, amount string) domain.Payment {
	t.Helper()
	p, err := e.svc.Create(context.Background(), domain.CreatePaymentRequest{
		InvoiceID:     invoiceID.String(),
		Amount:        dec(amount),
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)
	return p
}

func (e testEnv) invoice(t *testing.T, id snowflake.ID) invoicedomain.InvoiceWithPayments {
	t.Helper()
	inv, err := e.invoices.GetByID(context.Background(), id.String())
	require.NoError(t, err)
	return inv
}

func TestVehicleSaleSettledInTwoInstalments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	due := env.clock.Now().AddDate(0, 0, 30)
	inv, err := env.invoices.Create(ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID:  env.customer.String(),
		Currency:    "AED",
		Subtotal:    dec("25000"),
		VATRate:     dec("5"),
		VATAmount:   dec("1250"),
		TotalAmount: dec("26250"),
		DueDate:     &due,
	})
	require.NoError(t, err)
	_, err = env.invoices.Send(ctx, inv.ID.String())
	require.NoError(t, err)

	env.pay(t, inv.ID, "13125")
	got := env.invoice(t, inv.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, got.Status)
	assert.True(t, got.BalanceDue.Equal(dec("13125")), got.BalanceDue.String())

	env.pay(t, inv.ID, "13125")
	got = env.invoice(t, inv.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusFullyPaid, got.Status)
	assert.True(t, got.BalanceDue.IsZero(), got.BalanceDue.String())
	assert.True(t, got.TotalPaid.Equal(dec("26250")))
}

func TestCreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv := env.createInvoice(t, "USD", "1000", nil)

	p, err := env.svc.Create(ctx, domain.CreatePaymentRequest{
		InvoiceID:     inv.ID.String(),
		Amount:        dec("250.555"),
		PaymentMethod: "Cash",
	})
	require.NoError(t, err)
	assert.Equal(t, money.CurrencyUSD, p.Currency)
	assert.Equal(t, domain.PaymentMethodCash, p.PaymentMethod)
	assert.Equal(t, clock.Today(env.clock), p.PaymentDate)
	assert.True(t, p.Amount.Equal(dec("250.56")))

	_, err = env.svc.Create(ctx, domain.CreatePaymentRequest{InvoiceID: inv.ID.String(), Amount: dec("0"), PaymentMethod: "cash"})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = env.svc.Create(ctx, domain.CreatePaymentRequest{InvoiceID: inv.ID.String(), Amount: dec("1"), PaymentMethod: "barter"})
	require.ErrorIs(t, err, domain.ErrInvalidMethod)

	_, err = env.svc.Create(ctx, domain.CreatePaymentRequest{InvoiceID: inv.ID.String(), Amount: dec("1"), Currency: "GBP", PaymentMethod: "cash"})
	require.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = env.svc.Create(ctx, domain.CreatePaymentRequest{InvoiceID: env.node.Generate().String(), Amount: dec("1"), PaymentMethod: "cash"})
	require.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	assert.True(t, ierr.IsNotFound(err))

	_, err = env.svc.Create(ctx, domain.CreatePaymentRequest{Amount: dec("1"), PaymentMethod: "cash"})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestUpdateAndDeleteRecomputeStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv := env.createInvoice(t, "AED", "1000", nil)
	_, err := env.invoices.Send(ctx, inv.ID.String())
	require.NoError(t, err)

	p := env.pay(t, inv.ID, "400")
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, env.invoice(t, inv.ID).Status)

	amount := dec("1000")
	updated, err := env.svc.Update(ctx, p.ID.String(), domain.UpdatePaymentRequest{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))
	assert.Equal(t, inv.ID, updated.InvoiceID)
	assert.Equal(t, invoicedomain.InvoiceStatusFullyPaid, env.invoice(t, inv.ID).Status)

	require.NoError(t, env.svc.Delete(ctx, p.ID.String()))
	assert.Equal(t, invoicedomain.InvoiceStatusSent, env.invoice(t, inv.ID).Status)

	_, err = env.svc.GetByID(ctx, p.ID.String())
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = env.svc.Delete(ctx, p.ID.String())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuickPaymentUsesInvoiceCurrency(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInvoice(t, "CAD", "800", nil)

	p, err := env.svc.CreateQuickPayment(context.Background(), domain.QuickPaymentRequest{
		InvoiceID:     inv.ID.String(),
		Amount:        dec("300"),
		PaymentMethod: "check",
	})
	require.NoError(t, err)
	assert.Equal(t, money.CurrencyCAD, p.Currency)
	assert.Equal(t, clock.Today(env.clock), p.PaymentDate)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, env.invoice(t, inv.ID).Status)
}

func TestProcessFullPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv := env.createInvoice(t, "AED", "26250", nil)
	env.pay(t, inv.ID, "6250")

	p, err := env.svc.ProcessFullPayment(ctx, domain.FullPaymentRequest{
		InvoiceID:     inv.ID.String(),
		PaymentMethod: "credit_card",
	})
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(dec("20000")), p.Amount.String())
	assert.Equal(t, invoicedomain.InvoiceStatusFullyPaid, env.invoice(t, inv.ID).Status)

	_, err = env.svc.ProcessFullPayment(ctx, domain.FullPaymentRequest{
		InvoiceID:     inv.ID.String(),
		PaymentMethod: "credit_card",
	})
	require.ErrorIs(t, err, domain.ErrAlreadyFullyPaid)
	assert.Contains(t, err.Error(), "Invoice is already fully paid")

	var count int64
	require.NoError(t, env.db.Model(&domain.Payment{}).Where("invoice_id = ?", inv.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestCreateRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv := env.createInvoice(t, "AED", "1000", nil)
	original := env.pay(t, inv.ID, "1000")
	assert.Equal(t, invoicedomain.InvoiceStatusFullyPaid, env.invoice(t, inv.ID).Status)

	_, err := env.svc.CreateRefund(ctx, domain.RefundRequest{
		PaymentID: original.ID.String(),
		Amount:    dec("1000.01"),
		Reason:    "too much",
	})
	require.ErrorIs(t, err, domain.ErrRefundExceedsTotal)
	assert.Contains(t, err.Error(), "Refund amount cannot exceed original payment amount")

	refund, err := env.svc.CreateRefund(ctx, domain.RefundRequest{
		PaymentID: original.ID.String(),
		Amount:    dec("250"),
		Reason:    "damaged bumper",
		UserID:    "ops-7",
	})
	require.NoError(t, err)
	assert.True(t, refund.Amount.Equal(dec("-250")))
	assert.True(t, refund.IsRefund())
	assert.Equal(t, original.Currency, refund.Currency)
	assert.Equal(t, original.PaymentMethod, refund.PaymentMethod)
	require.NotNil(t, refund.TransactionID)
	assert.Equal(t, "REFUND-"+original.ID.String(), *refund.TransactionID)
	require.NotNil(t, refund.Notes)
	assert.Contains(t, *refund.Notes, original.ID.String())
	assert.Contains(t, *refund.Notes, "damaged bumper")
	require.NotNil(t, refund.CreatedBy)
	assert.Equal(t, "ops-7", *refund.CreatedBy)

	got := env.invoice(t, inv.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, got.Status)
	assert.True(t, got.BalanceDue.Equal(dec("250")))

	// Only the original amount bounds a refund, not earlier refunds.
	_, err = env.svc.CreateRefund(ctx, domain.RefundRequest{PaymentID: original.ID.String(), Amount: dec("-900")})
	require.NoError(t, err)

	_, err = env.svc.CreateRefund(ctx, domain.RefundRequest{PaymentID: original.ID.String(), Amount: dec("0")})
	require.ErrorIs(t, err, domain.ErrInvalidRefund)

	_, err = env.svc.CreateRefund(ctx, domain.RefundRequest{PaymentID: env.node.Generate().String(), Amount: dec("1")})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefundOfOrphanedPayment(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()
	orphan := domain.Payment{
		ID:            env.node.Generate(),
		InvoiceID:     env.node.Generate(),
		Amount:        dec("100"),
		Currency:      money.CurrencyAED,
		PaymentDate:   now,
		PaymentMethod: domain.PaymentMethodCash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, env.db.Create(&orphan).Error)

	_, err := env.svc.CreateRefund(context.Background(), domain.RefundRequest{PaymentID: orphan.ID.String(), Amount: dec("10")})
	require.ErrorIs(t, err, domain.ErrRefundOrphan)
}

func TestGetInvoicePaymentSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		total      string
		payments   []string
		paid       string
		balance    string
		percentage string
	}{
		{"half paid", "10000", []string{"3000", "2000"}, "5000", "5000", "50"},
		{"overpaid", "3000", []string{"5000"}, "5000", "-2000", "166.67"},
		{"zero amount", "0", nil, "0", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := env.createInvoice(t, "AED", tt.total, nil)
			for _, amount := range tt.payments {
				env.pay(t, inv.ID, amount)
			}

			summary, err := env.svc.GetInvoicePaymentSummary(ctx, inv.ID.String())
			require.NoError(t, err)
			assert.Equal(t, inv.InvoiceNumber, summary.InvoiceNumber)
			assert.True(t, summary.InvoiceAmount.Equal(dec(tt.total)))
			assert.True(t, summary.TotalPaid.Equal(dec(tt.paid)), summary.TotalPaid.String())
			assert.True(t, summary.BalanceDue.Equal(dec(tt.balance)), summary.BalanceDue.String())
			assert.True(t, summary.PaymentPercentage.Equal(dec(tt.percentage)), summary.PaymentPercentage.String())
			assert.Equal(t, len(tt.payments), summary.PaymentCount)
			assert.Len(t, summary.Payments, len(tt.payments))
		})
	}
}

func TestListAndStatistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aed := env.createInvoice(t, "AED", "5000", nil)
	usd := env.createInvoice(t, "USD", "5000", nil)

	first := env.pay(t, aed.ID, "1000")
	_, err := env.svc.CreateQuickPayment(ctx, domain.QuickPaymentRequest{InvoiceID: aed.ID.String(), Amount: dec("500"), PaymentMethod: "cash"})
	require.NoError(t, err)
	_, err = env.svc.CreateQuickPayment(ctx, domain.QuickPaymentRequest{InvoiceID: usd.ID.String(), Amount: dec("700"), PaymentMethod: "cash"})
	require.NoError(t, err)
	_, err = env.svc.CreateRefund(ctx, domain.RefundRequest{PaymentID: first.ID.String(), Amount: dec("100"), Reason: "goodwill"})
	require.NoError(t, err)

	all, err := env.svc.List(ctx, domain.ListPaymentRequest{Page: pagination.Page{Page: 2, Limit: 3}})
	require.NoError(t, err)
	assert.Len(t, all.Payments, 1)
	assert.Equal(t, pagination.Info{Page: 2, Limit: 3, Total: 4, Pages: 2}, all.Pagination)

	byInvoice, err := env.svc.List(ctx, domain.ListPaymentRequest{InvoiceID: aed.ID.String(), Method: "CASH"})
	require.NoError(t, err)
	assert.Len(t, byInvoice.Payments, 1)

	refunds, err := env.svc.List(ctx, domain.ListPaymentRequest{Search: "refund-"})
	require.NoError(t, err)
	assert.Len(t, refunds.Payments, 1)

	_, err = env.svc.List(ctx, domain.ListPaymentRequest{Method: "barter"})
	require.ErrorIs(t, err, domain.ErrInvalidMethod)

	stats, err := env.svc.GetStatistics(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalPayments)
	assert.Equal(t, int64(2), stats.CountByMethod[domain.PaymentMethodCash])
	assert.Equal(t, int64(2), stats.CountByMethod[domain.PaymentMethodBankTransfer])
	assert.True(t, stats.AmountByMethod[domain.PaymentMethodBankTransfer][money.CurrencyAED].Equal(dec("900")))
	assert.True(t, stats.AmountByMethod[domain.PaymentMethodCash][money.CurrencyUSD].Equal(dec("700")))
	assert.True(t, stats.AmountByCurrency[money.CurrencyAED].Equal(dec("1400")))
	assert.True(t, stats.AmountByCurrency[money.CurrencyUSD].Equal(dec("700")))
	assert.Equal(t, int64(1), stats.RefundCount)
	assert.True(t, stats.RefundAmountByCurrency[money.CurrencyAED].Equal(dec("-100")))
}
