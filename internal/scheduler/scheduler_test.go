package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/config"
	customerrepo "github.com/smallbiznis/autotrade/internal/customer/repository"
	invoicedomain "github.com/smallbiznis/autotrade/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/autotrade/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/autotrade/internal/invoice/service"
	"github.com/smallbiznis/autotrade/internal/lock"
	"github.com/smallbiznis/autotrade/internal/testutil"
	vehiclerepo "github.com/smallbiznis/autotrade/internal/vehicle/repository"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOverdueSweepJob(t *testing.T) {
	db := testutil.NewTestDB(t)
	node := testutil.MustNode(t)
	clk := testutil.NewClock()

	invoices := invoiceservice.New(invoiceservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      invoicerepo.Provide(),
		Customers: customerrepo.Provide(),
		Vehicles:  vehiclerepo.Provide(),
		Billing:   config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})
	customer := testutil.SeedCustomer(t, db, node, "late@example.com")
	ctx := context.Background()

	create := func(due time.Time) invoicedomain.Invoice {
		t.Helper()
		inv, err := invoices.Create(ctx, invoicedomain.CreateInvoiceRequest{
			CustomerID:  customer.ID.String(),
			Currency:    "AED",
			Subtotal:    decimal.NewFromInt(1000),
			TotalAmount: decimal.NewFromInt(1000),
			DueDate:     &due,
		})
		require.NoError(t, err)
		return inv
	}

	past := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	late := []invoicedomain.Invoice{create(past), create(past), create(past)}
	current := create(time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC))
	cancelled := create(past)
	_, err := invoices.Cancel(ctx, cancelled.ID.String())
	require.NoError(t, err)

	sched, err := New(Params{
		Log:        zap.NewNop(),
		InvoiceSvc: invoices,
		Clock:      clk,
		Config:     Config{BatchSize: 2},
	})
	require.NoError(t, err)

	res, err := sched.OverdueSweepJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 3, res.Updated)
	assert.Zero(t, res.Failed)

	for _, inv := range late {
		got, err := invoices.GetByID(ctx, inv.ID.String())
		require.NoError(t, err)
		assert.Equal(t, invoicedomain.InvoiceStatusOverdue, got.Status)
	}
	got, err := invoices.GetByID(ctx, current.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, got.Status)
	got, err = invoices.GetByID(ctx, cancelled.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, got.Status)

	require.NoError(t, sched.RunOnce(ctx))
	res, err = sched.OverdueSweepJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Zero(t, res.Updated)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

type ttlRecordingInvoices struct {
	invoicedomain.Service
	mr  *miniredis.Miniredis
	ttl time.Duration
}

func (r *ttlRecordingInvoices) ListOverdue(context.Context, pagination.Page) (invoicedomain.ListInvoiceResponse, error) {
	r.ttl = r.mr.TTL("autotrade:lock:scheduler:overdue_sweep")
	return invoicedomain.ListInvoiceResponse{}, nil
}

func TestRunOnceHoldsLockForWholeJob(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	invoices := &ttlRecordingInvoices{mr: mr}
	sched, err := New(Params{
		Log:        zap.NewNop(),
		InvoiceSvc: invoices,
		Clock:      clock.NewFakeClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)),
		Guard:      lock.NewGuard(lock.NewLocker(client, "autotrade:lock:"), zap.NewNop()),
		Config:     Config{JobTimeout: 5 * time.Minute},
	})
	require.NoError(t, err)

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Greater(t, invoices.ttl, 5*time.Minute)
	assert.False(t, mr.Exists("autotrade:lock:scheduler:overdue_sweep"))
}
