package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/invoice/totals"
	"github.com/smallbiznis/autotrade/internal/validator"
	"github.com/smallbiznis/autotrade/pkg/money"
	"go.uber.org/zap"
)

// CreateFromVehicleSale invoices a single vehicle. VAT follows the configured
// rate for the sale currency and the due date is the configured payment term
// after today.
func (s *Service) CreateFromVehicleSale(ctx context.Context, req domain.VehicleSaleRequest) (domain.Invoice, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Invoice{}, err
	}

	customerID, err := parseRef(req.CustomerID, domain.ErrInvalidCustomerID)
	if err != nil {
		return domain.Invoice{}, err
	}
	vehicleID, err := parseRef(req.VehicleID, domain.ErrInvalidVehicleID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := s.ensureReferences(ctx, s.db, customerID, nil); err != nil {
		return domain.Invoice{}, err
	}

	vehicle, err := s.vehicles.FindByID(ctx, s.db, vehicleID)
	if err != nil {
		return domain.Invoice{}, s.dbErr(err, "find vehicle")
	}
	if vehicle == nil {
		return domain.Invoice{}, domain.ErrVehicleNotFound
	}

	price := vehicle.SalePrice
	if req.SalePrice != nil {
		price = *req.SalePrice
	}
	if !price.IsPositive() {
		return domain.Invoice{}, domain.ErrInvalidSalePrice
	}

	currency := vehicle.Currency
	if strings.TrimSpace(req.Currency) != "" {
		currency, err = money.ParseCurrency(req.Currency)
		if err != nil {
			return domain.Invoice{}, domain.ErrInvalidCurrency
		}
	}
	if !currency.Valid() {
		currency = money.CurrencyAED
	}

	billing := s.billing.Get()
	rate := totals.VATRateForCurrency(billing, currency)
	now := s.clock.Now()
	due := now.AddDate(0, 0, billing.PaymentTermsDays)

	invoice := domain.Invoice{
		ID:           s.genID.Generate(),
		CustomerID:   customerID,
		VehicleID:    &vehicle.ID,
		VATRate:      rate,
		Currency:     currency,
		Status:       domain.InvoiceStatusDraft,
		DueDate:      &due,
		PaymentTerms: billing.PaymentTerms,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	unit := totals.Round2(price)
	invoice.Items = []domain.InvoiceItem{{
		ID:          s.genID.Generate(),
		InvoiceID:   invoice.ID,
		Description: vehicle.Title(),
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   unit,
		Total:       unit,
		CreatedAt:   now,
	}}
	t := totals.CalculateTotals(invoice.Items, rate)
	invoice.Subtotal = t.Subtotal
	invoice.VATAmount = t.VATAmount
	invoice.TotalAmount = t.Total

	if err := s.insert(ctx, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.RecordInvoiceCreated(ctx, invoice.Currency.String(), sourceVehicleSale)
	s.log.Info("vehicle sale invoiced",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("vehicle_id", vehicle.ID.String()),
		zap.String("total_amount", invoice.TotalAmount.String()),
	)
	return invoice, nil
}
