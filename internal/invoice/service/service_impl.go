package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/config"
	customerdomain "github.com/smallbiznis/autotrade/internal/customer/domain"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/invoice/totals"
	"github.com/smallbiznis/autotrade/internal/lock"
	"github.com/smallbiznis/autotrade/internal/observability/metrics"
	"github.com/smallbiznis/autotrade/internal/validator"
	vehicledomain "github.com/smallbiznis/autotrade/internal/vehicle/domain"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"github.com/smallbiznis/autotrade/pkg/db/retry"
	"github.com/smallbiznis/autotrade/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sourceManual      = "manual"
	sourceVehicleSale = "vehicle_sale"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Customers customerdomain.Repository
	Vehicles  vehicledomain.Repository
	Billing   *config.BillingConfigHolder `optional:"true"`
	Guard     *lock.Guard                 `optional:"true"`
	Metrics   *metrics.Metrics            `optional:"true"`
	Retry     retry.Policy                `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	customers customerdomain.Repository
	vehicles  vehicledomain.Repository
	billing   *config.BillingConfigHolder
	guard     *lock.Guard
	metrics   *metrics.Metrics
	retry     retry.Policy
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		customers: p.Customers,
		vehicles:  p.Vehicles,
		billing:   p.Billing,
		guard:     p.Guard,
		metrics:   p.Metrics,
		retry:     p.Retry,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Invoice{}, err
	}

	customerID, err := parseRef(req.CustomerID, domain.ErrInvalidCustomerID)
	if err != nil {
		return domain.Invoice{}, err
	}
	var vehicleID *snowflake.ID
	if strings.TrimSpace(req.VehicleID) != "" {
		id, err := parseRef(req.VehicleID, domain.ErrInvalidVehicleID)
		if err != nil {
			return domain.Invoice{}, err
		}
		vehicleID = &id
	}

	currency := money.CurrencyAED
	if strings.TrimSpace(req.Currency) != "" {
		currency, err = money.ParseCurrency(req.Currency)
		if err != nil {
			return domain.Invoice{}, domain.ErrInvalidCurrency
		}
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:            s.genID.Generate(),
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		CustomerID:    customerID,
		VehicleID:     vehicleID,
		Subtotal:      req.Subtotal,
		VATRate:       req.VATRate,
		VATAmount:     req.VATAmount,
		TotalAmount:   req.TotalAmount,
		Currency:      currency,
		Status:        domain.InvoiceStatusDraft,
		DueDate:       utcTime(req.DueDate),
		PaymentTerms:  strings.TrimSpace(req.PaymentTerms),
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if len(req.Items) > 0 {
		items, err := s.buildItems(invoice.ID, req.Items)
		if err != nil {
			return domain.Invoice{}, err
		}
		t := totals.CalculateTotals(items, req.VATRate)
		invoice.Items = items
		invoice.Subtotal = t.Subtotal
		invoice.VATAmount = t.VATAmount
		invoice.TotalAmount = t.Total
	}

	if err := validateAmounts(invoice); err != nil {
		return domain.Invoice{}, err
	}
	if err := s.ensureReferences(ctx, s.db, invoice.CustomerID, invoice.VehicleID); err != nil {
		return domain.Invoice{}, err
	}

	if err := s.insert(ctx, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.RecordInvoiceCreated(ctx, invoice.Currency.String(), sourceManual)
	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total_amount", invoice.TotalAmount.String()),
		zap.String("currency", invoice.Currency.String()),
	)
	return invoice, nil
}

func (s *Service) buildItems(invoiceID snowflake.ID, inputs []domain.InvoiceItemInput) ([]domain.InvoiceItem, error) {
	now := s.clock.Now()
	items := make([]domain.InvoiceItem, 0, len(inputs))
	for _, in := range inputs {
		qty := decimal.NewFromInt(1)
		if in.Quantity != nil {
			qty = *in.Quantity
		}
		if !qty.IsPositive() {
			return nil, domain.ErrInvalidQuantity
		}
		if in.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidAmount
		}
		total := totals.Round2(qty.Mul(in.UnitPrice))
		if in.Total != nil {
			total = totals.Round2(*in.Total)
		}
		items = append(items, domain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Description: strings.TrimSpace(in.Description),
			Quantity:    qty,
			UnitPrice:   totals.Round2(in.UnitPrice),
			Total:       total,
			CreatedAt:   now,
		})
	}
	return items, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.InvoiceWithPayments, error) {
	invoiceID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.InvoiceWithPayments{}, err
	}
	return s.load(ctx, s.db, invoiceID)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (domain.InvoiceWithPayments, error) {
	item, err := retry.Value(ctx, s.retry, func(ctx context.Context) (*domain.Invoice, error) {
		return s.repo.FindByID(ctx, db, invoiceID)
	})
	if err != nil {
		return domain.InvoiceWithPayments{}, s.dbErr(err, "find invoice")
	}
	if item == nil {
		return domain.InvoiceWithPayments{}, domain.ErrNotFound
	}

	payments, err := s.repo.ListPayments(ctx, db, invoiceID)
	if err != nil {
		return domain.InvoiceWithPayments{}, s.dbErr(err, "list invoice payments")
	}
	return domain.NewInvoiceWithPayments(*item, payments), nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	page := req.Page.Normalize(s.billing.Get().PageLimitMax)
	filter := domain.ListInvoiceFilter{
		Search:      strings.TrimSpace(req.Search),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
		DueFrom:     req.DueFrom,
		DueTo:       req.DueTo,
	}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		filter.Status = domain.InvoiceStatus(status)
		if !filter.Status.Valid() {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidStatus
		}
	}
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseRef(req.CustomerID, domain.ErrInvalidCustomerID)
		if err != nil {
			return domain.ListInvoiceResponse{}, err
		}
		filter.CustomerID = &id
	}
	if strings.TrimSpace(req.VehicleID) != "" {
		id, err := parseRef(req.VehicleID, domain.ErrInvalidVehicleID)
		if err != nil {
			return domain.ListInvoiceResponse{}, err
		}
		filter.VehicleID = &id
	}
	if strings.TrimSpace(req.Currency) != "" {
		currency, err := money.ParseCurrency(req.Currency)
		if err != nil {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidCurrency
		}
		filter.Currency = currency
	}

	var (
		items []*domain.Invoice
		total int64
	)
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, s.db, filter, page)
		return err
	})
	if err != nil {
		return domain.ListInvoiceResponse{}, s.dbErr(err, "list invoices")
	}
	return listResponse(items, page, total), nil
}

func (s *Service) ListOverdue(ctx context.Context, req pagination.Page) (domain.ListInvoiceResponse, error) {
	page := req.Normalize(s.billing.Get().PageLimitMax)
	today := clock.Today(s.clock)

	var (
		items []*domain.Invoice
		total int64
	)
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.ListOverdue(ctx, s.db, today, page)
		return err
	})
	if err != nil {
		return domain.ListInvoiceResponse{}, s.dbErr(err, "list overdue invoices")
	}
	return listResponse(items, page, total), nil
}

func listResponse(items []*domain.Invoice, page pagination.Page, total int64) domain.ListInvoiceResponse {
	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return domain.ListInvoiceResponse{
		Invoices:   invoices,
		Pagination: pagination.NewInfo(page, total),
	}
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	invoiceID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var updated domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return s.dbErr(err, "find invoice")
		}
		if item == nil {
			return domain.ErrNotFound
		}

		if req.CustomerID != nil {
			customerID, err := parseRef(*req.CustomerID, domain.ErrInvalidCustomerID)
			if err != nil {
				return err
			}
			item.CustomerID = customerID
		}
		if req.VehicleID != nil {
			if strings.TrimSpace(*req.VehicleID) == "" {
				item.VehicleID = nil
			} else {
				vehicleID, err := parseRef(*req.VehicleID, domain.ErrInvalidVehicleID)
				if err != nil {
					return err
				}
				item.VehicleID = &vehicleID
			}
		}
		if req.Currency != nil {
			currency, err := money.ParseCurrency(*req.Currency)
			if err != nil {
				return domain.ErrInvalidCurrency
			}
			item.Currency = currency
		}
		if req.Subtotal != nil {
			item.Subtotal = *req.Subtotal
		}
		if req.VATRate != nil {
			item.VATRate = *req.VATRate
		}
		if req.VATAmount != nil {
			item.VATAmount = *req.VATAmount
		}
		if req.TotalAmount != nil {
			item.TotalAmount = *req.TotalAmount
		}
		if req.Status != nil {
			next := domain.InvoiceStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
			if !next.Valid() {
				return domain.ErrInvalidStatus
			}
			item.Status = next
		}
		if req.DueDate != nil {
			item.DueDate = utcTime(req.DueDate)
		}
		if req.PaymentTerms != nil {
			item.PaymentTerms = strings.TrimSpace(*req.PaymentTerms)
		}
		if req.Notes != nil {
			item.Notes = *req.Notes
		}

		if err := validateAmounts(*item); err != nil {
			return err
		}
		if req.CustomerID != nil || req.VehicleID != nil {
			if err := s.ensureReferences(ctx, tx, item.CustomerID, item.VehicleID); err != nil {
				return err
			}
		}
		item.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, item); err != nil {
			return s.dbErr(err, "update invoice")
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return updated, nil
}

// Send moves a draft invoice to sent.
func (s *Service) Send(ctx context.Context, id string) (domain.Invoice, error) {
	return s.transition(ctx, id, domain.InvoiceStatusSent, func(current domain.InvoiceStatus) error {
		if current != domain.InvoiceStatusDraft {
			return domain.ErrNotDraft
		}
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, id string) (domain.Invoice, error) {
	return s.transition(ctx, id, domain.InvoiceStatusCancelled, func(current domain.InvoiceStatus) error {
		if current == domain.InvoiceStatusCancelled {
			return domain.ErrAlreadyCancelled
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id string, to domain.InvoiceStatus, allowed func(domain.InvoiceStatus) error) (domain.Invoice, error) {
	invoiceID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var (
		updated domain.Invoice
		from    domain.InvoiceStatus
	)
	err = s.guard.WithLock(ctx, statusLockKey(invoiceID), func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			item, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
			if err != nil {
				return s.dbErr(err, "find invoice")
			}
			if item == nil {
				return domain.ErrNotFound
			}
			if err := allowed(item.Status); err != nil {
				return err
			}

			from = item.Status
			item.Status = to
			item.UpdatedAt = s.clock.Now()
			if err := s.repo.UpdateStatus(ctx, tx, item.ID, item.Status, item.UpdatedAt); err != nil {
				return s.dbErr(err, "update invoice status")
			}
			updated = *item
			return nil
		})
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.RecordStatusTransition(ctx, string(from), string(to))
	s.log.Info("invoice status changed",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return updated, nil
}

// Delete removes an invoice and its items. Invoices with recorded payments stay.
func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return s.dbErr(err, "find invoice")
		}
		if item == nil {
			return domain.ErrNotFound
		}

		payments, err := s.repo.CountPayments(ctx, tx, invoiceID)
		if err != nil {
			return s.dbErr(err, "count invoice payments")
		}
		if payments > 0 {
			return domain.ErrHasPayments
		}

		if err := s.repo.Delete(ctx, tx, invoiceID); err != nil {
			return s.dbErr(err, "delete invoice")
		}
		s.log.Info("invoice deleted", zap.String("invoice_id", invoiceID.String()))
		return nil
	})
}

func (s *Service) ensureReferences(ctx context.Context, db *gorm.DB, customerID snowflake.ID, vehicleID *snowflake.ID) error {
	customer, err := s.customers.FindByID(ctx, db, customerID)
	if err != nil {
		return s.dbErr(err, "find customer")
	}
	if customer == nil {
		return domain.ErrCustomerNotFound
	}
	if vehicleID == nil {
		return nil
	}
	vehicle, err := s.vehicles.FindByID(ctx, db, *vehicleID)
	if err != nil {
		return s.dbErr(err, "find vehicle")
	}
	if vehicle == nil {
		return domain.ErrVehicleNotFound
	}
	return nil
}

func validateAmounts(inv domain.Invoice) error {
	switch {
	case inv.Subtotal.IsNegative(), inv.VATAmount.IsNegative(), inv.TotalAmount.IsNegative():
		return domain.ErrInvalidAmount
	case inv.VATRate.IsNegative(), inv.VATRate.GreaterThan(hundred):
		return domain.ErrInvalidVATRate
	case !inv.Currency.Valid():
		return domain.ErrInvalidCurrency
	}
	return nil
}

func (s *Service) dbErr(err error, op string) error {
	s.log.Error(op+" failed", zap.Error(err))
	return ierr.WithError(err).
		WithMessage(op).
		WithHint("Failed to " + op).
		Mark(ierr.ErrDatabase)
}

// utcTime copies v in UTC; due dates are compared against a UTC today.
func utcTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := v.UTC()
	return &t
}

func parseRef(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
