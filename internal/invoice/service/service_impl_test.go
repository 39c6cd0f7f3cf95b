package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/config"
	customerrepo "github.com/smallbiznis/autotrade/internal/customer/repository"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/invoice/repository"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
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
	svc      *Service
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

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Customers: customerrepo.Provide(),
		Vehicles:  vehiclerepo.Provide(),
		Billing:   config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	}).(*Service)

	customer := testutil.SeedCustomer(t, db, node, "buyer@example.com")
	return testEnv{svc: svc, db: db, clock: clk, node: node, customer: customer.ID}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func (e testEnv) createInvoice(t *testing.T, total string, due *time.Time) domain.Invoice {
	t.Helper()
	inv, err := e.svc.Create(context.Background(), domain.CreateInvoiceRequest{
		CustomerID:  e.customer.String(),
		Currency:    "AED",
		Subtotal:    dec(total),
		TotalAmount: dec(total),
		DueDate:     due,
	})
	require.NoError(t, err)
	return inv
}

func (e testEnv) addPayment(t *testing.T, invoiceID snowflake.ID, amount string) {
	t.Helper()
	now := e.clock.Now()
	p := paymentdomain.Payment{
		ID:            e.node.Generate(),
		InvoiceID:     invoiceID,
		Amount:        dec(amount),
		Currency:      money.CurrencyAED,
		PaymentDate:   now,
		PaymentMethod: paymentdomain.PaymentMethodCash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, e.db.Create(&p).Error)
}

func TestGenerateInvoiceNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.Equal(t, "INV-2026-0001", env.svc.GenerateInvoiceNumber(ctx))

	_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		InvoiceNumber: "INV-0005",
		CustomerID:    env.customer.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0006", env.svc.GenerateInvoiceNumber(ctx))

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{
		InvoiceNumber: "CUSTOM-001",
		CustomerID:    env.customer.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", env.svc.GenerateInvoiceNumber(ctx))
}

type failingLatestRepo struct {
	domain.Repository
}

func (failingLatestRepo) FindLatest(context.Context, *gorm.DB) (*domain.Invoice, error) {
	return nil, errors.New("connection refused")
}

func TestGenerateInvoiceNumberSurvivesLookupFailure(t *testing.T) {
	env := newTestEnv(t)
	env.svc.repo = failingLatestRepo{Repository: repository.Provide()}

	assert.Equal(t, "INV-2026-0001", env.svc.GenerateInvoiceNumber(context.Background()))

	inv, err := env.svc.Create(context.Background(), domain.CreateInvoiceRequest{CustomerID: env.customer.String()})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", inv.InvoiceNumber)
}

func TestCreateAfterCustomNumberSkipsIssuedSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String()})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", first.InvoiceNumber)

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{
		InvoiceNumber: "CUSTOM-001",
		CustomerID:    env.customer.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", env.svc.GenerateInvoiceNumber(ctx))

	want := []string{"INV-2026-0002", "INV-2026-0003", "INV-2026-0004"}
	for _, number := range want {
		inv, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String()})
		require.NoError(t, err)
		assert.Equal(t, number, inv.InvoiceNumber)
	}

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{
		InvoiceNumber: "CUSTOM-002",
		CustomerID:    env.customer.String(),
	})
	require.NoError(t, err)

	next, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String()})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0005", next.InvoiceNumber)
}

func TestCreateAfterLookupFailureSkipsIssuedSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String()})
		require.NoError(t, err)
	}

	env.svc.repo = failingLatestRepo{Repository: repository.Provide()}
	inv, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String()})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0003", inv.InvoiceNumber)
}

func TestCreateComputesTotalsFromItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: env.customer.String(),
		Currency:   "aed",
		VATRate:    dec("5"),
		Items: []domain.InvoiceItemInput{
			{Description: "Shipping", UnitPrice: dec("200")},
			{Description: "Inspection", Quantity: decPtr("2"), UnitPrice: dec("150")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-0001", inv.InvoiceNumber)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, money.CurrencyAED, inv.Currency)
	assert.True(t, inv.Subtotal.Equal(dec("500")), inv.Subtotal.String())
	assert.True(t, inv.VATAmount.Equal(dec("25")), inv.VATAmount.String())
	assert.True(t, inv.TotalAmount.Equal(dec("525")), inv.TotalAmount.String())

	loaded, err := env.svc.GetByID(ctx, inv.ID.String())
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.True(t, loaded.TotalPaid.IsZero())
	assert.True(t, loaded.BalanceDue.Equal(dec("525")))
	assert.Empty(t, loaded.Payments)

	next, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String()})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0002", next.InvoiceNumber)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.node.Generate().String()})
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
	assert.True(t, ierr.IsNotFound(err))

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: "not-an-id"})
	require.ErrorIs(t, err, domain.ErrInvalidCustomerID)

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String(), Currency: "EUR"})
	require.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String(), TotalAmount: dec("-1")})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerID: env.customer.String(), VATRate: dec("101")})
	require.ErrorIs(t, err, domain.ErrInvalidVATRate)

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: env.customer.String(),
		Items:      []domain.InvoiceItemInput{{Description: "Bad", Quantity: decPtr("0"), UnitPrice: dec("1")}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: env.customer.String(),
		VehicleID:  env.node.Generate().String(),
	})
	require.ErrorIs(t, err, domain.ErrVehicleNotFound)
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{InvoiceNumber: "INV-2026-0042", CustomerID: env.customer.String()})
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{InvoiceNumber: "INV-2026-0042", CustomerID: env.customer.String()})
	require.ErrorIs(t, err, domain.ErrNumberExists)
	assert.Contains(t, err.Error(), "already exists")
	assert.True(t, ierr.IsAlreadyExists(err))
}

func TestCreateFromVehicleSale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	vehicle := testutil.SeedVehicle(t, env.db, env.node, "JTMHV05J604123456", dec("100000"), money.CurrencyAED)

	inv, err := env.svc.CreateFromVehicleSale(ctx, domain.VehicleSaleRequest{
		CustomerID: env.customer.String(),
		VehicleID:  vehicle.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
	assert.True(t, inv.VATRate.Equal(dec("5")))
	assert.True(t, inv.Subtotal.Equal(dec("100000")))
	assert.True(t, inv.VATAmount.Equal(dec("5000")))
	assert.True(t, inv.TotalAmount.Equal(dec("105000")))
	assert.Equal(t, "Net 30 days", inv.PaymentTerms)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, env.clock.Now().AddDate(0, 0, 30), inv.DueDate.UTC())
	require.NotNil(t, inv.VehicleID)
	assert.Equal(t, vehicle.ID, *inv.VehicleID)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "2021 Toyota Land Cruiser (VIN JTMHV05J604123456)", inv.Items[0].Description)

	usd, err := env.svc.CreateFromVehicleSale(ctx, domain.VehicleSaleRequest{
		CustomerID: env.customer.String(),
		VehicleID:  vehicle.ID.String(),
		SalePrice:  decPtr("30000.555"),
		Currency:   "USD",
	})
	require.NoError(t, err)
	assert.True(t, usd.VATRate.IsZero())
	assert.True(t, usd.VATAmount.IsZero())
	assert.True(t, usd.Subtotal.Equal(dec("30000.56")), usd.Subtotal.String())
	assert.True(t, usd.TotalAmount.Equal(dec("30000.56")))
	assert.Equal(t, "INV-2026-0002", usd.InvoiceNumber)

	unpriced := testutil.SeedVehicle(t, env.db, env.node, "JTMHV05J604999999", decimal.Zero, money.CurrencyAED)
	_, err = env.svc.CreateFromVehicleSale(ctx, domain.VehicleSaleRequest{
		CustomerID: env.customer.String(),
		VehicleID:  unpriced.ID.String(),
	})
	require.ErrorIs(t, err, domain.ErrInvalidSalePrice)
}

func TestUpdateWritesFieldsWithoutRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := env.createInvoice(t, "1000", nil)
	env.addPayment(t, inv.ID, "400")

	notes := "deliver to Jebel Ali"
	updated, err := env.svc.Update(ctx, inv.ID.String(), domain.UpdateInvoiceRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, domain.InvoiceStatusDraft, updated.Status)
	assert.True(t, updated.TotalAmount.Equal(dec("1000")))

	status := "bogus"
	_, err = env.svc.Update(ctx, inv.ID.String(), domain.UpdateInvoiceRequest{Status: &status})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = env.svc.Update(ctx, env.node.Generate().String(), domain.UpdateInvoiceRequest{Notes: &notes})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDueDatesStoredInUTC(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dubai := time.FixedZone("GST", 4*60*60)
	// 02:00 in Dubai on the fake today is still yesterday in UTC.
	due := time.Date(2026, 3, 15, 2, 0, 0, 0, dubai)

	created := env.createInvoice(t, "1000", &due)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, time.UTC, created.DueDate.Location())
	assert.True(t, created.DueDate.Equal(due))

	later := env.createInvoice(t, "500", nil)
	updated, err := env.svc.Update(ctx, later.ID.String(), domain.UpdateInvoiceRequest{DueDate: &due})
	require.NoError(t, err)
	require.NotNil(t, updated.DueDate)
	assert.True(t, updated.DueDate.Equal(due))

	resp, err := env.svc.ListOverdue(ctx, pagination.Page{})
	require.NoError(t, err)
	ids := make([]snowflake.ID, 0, len(resp.Invoices))
	for _, inv := range resp.Invoices {
		ids = append(ids, inv.ID)
	}
	assert.ElementsMatch(t, []snowflake.ID{created.ID, later.ID}, ids)
}

func TestSendAndCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := env.createInvoice(t, "1000", nil)

	sent, err := env.svc.Send(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, sent.Status)

	_, err = env.svc.Send(ctx, inv.ID.String())
	require.ErrorIs(t, err, domain.ErrNotDraft)
	assert.True(t, ierr.IsInvalidOperation(err))

	cancelled, err := env.svc.Cancel(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusCancelled, cancelled.Status)

	_, err = env.svc.Cancel(ctx, inv.ID.String())
	require.ErrorIs(t, err, domain.ErrAlreadyCancelled)
}

func TestUpdateStatusFromPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	due := env.clock.Now().AddDate(0, 0, 30)
	inv := env.createInvoice(t, "26250", &due)

	got, err := env.svc.UpdateStatusFromPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDraft, got.Status)

	env.addPayment(t, inv.ID, "13125")
	got, err = env.svc.UpdateStatusFromPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartiallyPaid, got.Status)
	assert.True(t, got.TotalPaid.Equal(dec("13125")))
	assert.True(t, got.BalanceDue.Equal(dec("13125")))

	env.clock.Advance(31 * 24 * time.Hour)
	got, err = env.svc.UpdateStatusFromPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusOverdue, got.Status)

	env.addPayment(t, inv.ID, "13125")
	got, err = env.svc.UpdateStatusFromPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusFullyPaid, got.Status)
	assert.True(t, got.BalanceDue.IsZero())

	env.addPayment(t, inv.ID, "-26250")
	got, err = env.svc.UpdateStatusFromPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusOverdue, got.Status, "zero paid past due is overdue, never draft")

	stored, err := env.svc.GetByID(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusOverdue, stored.Status)
	assert.Len(t, stored.Payments, 3)

	_, err = env.svc.UpdateStatusFromPayments(ctx, env.node.Generate())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecomputeOverwritesCancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := env.createInvoice(t, "1000", nil)
	_, err := env.svc.Cancel(ctx, inv.ID.String())
	require.NoError(t, err)

	env.addPayment(t, inv.ID, "100")
	require.NoError(t, env.svc.RecomputeStatus(ctx, inv.ID))

	stored, err := env.svc.GetByID(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartiallyPaid, stored.Status)
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	paid := env.createInvoice(t, "1000", nil)
	env.addPayment(t, paid.ID, "10")
	err := env.svc.Delete(ctx, paid.ID.String())
	require.ErrorIs(t, err, domain.ErrHasPayments)
	assert.True(t, ierr.IsConflict(err))

	inv, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: env.customer.String(),
		Items:      []domain.InvoiceItemInput{{Description: "Detailing", UnitPrice: dec("250")}},
	})
	require.NoError(t, err)
	require.NoError(t, env.svc.Delete(ctx, inv.ID.String()))

	_, err = env.svc.GetByID(ctx, inv.ID.String())
	require.ErrorIs(t, err, domain.ErrNotFound)

	var items int64
	require.NoError(t, env.db.Model(&domain.InvoiceItem{}).Where("invoice_id = ?", inv.ID).Count(&items).Error)
	assert.Zero(t, items)
}

func TestListFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		env.createInvoice(t, "100", nil)
	}
	_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID:    env.customer.String(),
		InvoiceNumber: "LEGACY-77",
		Currency:      "USD",
		Notes:         "Export to Lagos",
	})
	require.NoError(t, err)

	all, err := env.svc.List(ctx, domain.ListInvoiceRequest{Page: pagination.Page{Page: 1, Limit: 4}})
	require.NoError(t, err)
	assert.Len(t, all.Invoices, 4)
	assert.Equal(t, pagination.Info{Page: 1, Limit: 4, Total: 6, Pages: 2}, all.Pagination)

	usd, err := env.svc.List(ctx, domain.ListInvoiceRequest{Currency: "usd"})
	require.NoError(t, err)
	require.Len(t, usd.Invoices, 1)
	assert.Equal(t, "LEGACY-77", usd.Invoices[0].InvoiceNumber)

	search, err := env.svc.List(ctx, domain.ListInvoiceRequest{Search: "LAGOS"})
	require.NoError(t, err)
	assert.Len(t, search.Invoices, 1)

	clamped, err := env.svc.List(ctx, domain.ListInvoiceRequest{Page: pagination.Page{Limit: 500}})
	require.NoError(t, err)
	assert.Equal(t, 100, clamped.Pagination.Limit)
	assert.Equal(t, 1, clamped.Pagination.Page)

	_, err = env.svc.List(ctx, domain.ListInvoiceRequest{Status: "paid"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestStatisticsAndOverdue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	past := env.clock.Now().AddDate(0, 0, -3)
	future := env.clock.Now().AddDate(0, 0, 3)

	overdue := env.createInvoice(t, "1000", &past)
	env.createInvoice(t, "500", &future)
	settled := env.createInvoice(t, "200", &past)
	_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID:  env.customer.String(),
		Currency:    "USD",
		TotalAmount: dec("300"),
		DueDate:     &past,
	})
	require.NoError(t, err)

	env.addPayment(t, settled.ID, "200")
	require.NoError(t, env.svc.RecomputeStatus(ctx, settled.ID))
	require.NoError(t, env.svc.RecomputeStatus(ctx, overdue.ID))

	stats, err := env.svc.GetStatistics(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalInvoices)
	assert.Equal(t, int64(1), stats.CountByStatus[domain.InvoiceStatusFullyPaid])
	assert.Equal(t, int64(1), stats.CountByStatus[domain.InvoiceStatusOverdue])
	assert.Equal(t, int64(2), stats.CountByStatus[domain.InvoiceStatusDraft])
	assert.True(t, stats.AmountByCurrency[money.CurrencyAED].Equal(dec("1700")))
	assert.True(t, stats.AmountByCurrency[money.CurrencyUSD].Equal(dec("300")))
	assert.True(t, stats.AmountByStatus[domain.InvoiceStatusFullyPaid][money.CurrencyAED].Equal(dec("200")))
	assert.Equal(t, int64(2), stats.OverdueCount)
	assert.True(t, stats.OverdueAmountByCurrency[money.CurrencyAED].Equal(dec("1000")))
	assert.True(t, stats.OverdueAmountByCurrency[money.CurrencyUSD].Equal(dec("300")))

	from := env.clock.Now().Add(time.Hour)
	empty, err := env.svc.GetStatistics(ctx, &from, nil)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalInvoices)

	list, err := env.svc.ListOverdue(ctx, pagination.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Pagination.Total)
}
