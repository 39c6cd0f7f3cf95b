package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/config"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	invoicedomain "github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/observability/metrics"
	"github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/internal/validator"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"github.com/smallbiznis/autotrade/pkg/db/retry"
	"github.com/smallbiznis/autotrade/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	kindPayment = "payment"
	kindRefund  = "refund"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Invoices   invoicedomain.Repository
	Recomputer domain.StatusRecomputer
	Billing    *config.BillingConfigHolder `optional:"true"`
	Metrics    *metrics.Metrics            `optional:"true"`
	Retry      retry.Policy                `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	invoices   invoicedomain.Repository
	recomputer domain.StatusRecomputer
	billing    *config.BillingConfigHolder
	metrics    *metrics.Metrics
	retry      retry.Policy
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		invoices:   p.Invoices,
		recomputer: p.Recomputer,
		billing:    p.Billing,
		metrics:    p.Metrics,
		retry:      p.Retry,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePaymentRequest) (domain.Payment, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Payment{}, err
	}

	invoiceID, err := parseRef(req.InvoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Payment{}, err
	}
	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Payment{}, err
	}

	currency := invoice.Currency
	if strings.TrimSpace(req.Currency) != "" {
		currency, err = money.ParseCurrency(req.Currency)
		if err != nil {
			return domain.Payment{}, domain.ErrInvalidCurrency
		}
	}

	return s.record(ctx, domain.Payment{
		InvoiceID:     invoice.ID,
		Amount:        req.Amount,
		Currency:      currency,
		PaymentDate:   s.paymentDate(req.PaymentDate),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		TransactionID: trimmed(req.TransactionID),
		Notes:         req.Notes,
		CreatedBy:     trimmed(req.CreatedBy),
	})
}

// record validates and inserts a payment, then refreshes the invoice status.
// A failed refresh is logged; the payment itself is already committed.
func (s *Service) record(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	now := s.clock.Now()
	payment.ID = s.genID.Generate()
	payment.Amount = money.Round2(payment.Amount)
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if err := validate(payment); err != nil {
		return domain.Payment{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &payment); err != nil {
		return domain.Payment{}, s.dbErr(err, "insert payment")
	}

	kind := kindPayment
	if payment.IsRefund() {
		kind = kindRefund
	}
	s.metrics.RecordPayment(ctx, string(payment.PaymentMethod), payment.Currency.String(), kind)
	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", payment.InvoiceID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("currency", payment.Currency.String()),
		zap.String("kind", kind),
	)

	s.recompute(ctx, payment.InvoiceID)
	return payment, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	paymentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Payment{}, err
	}

	item, err := retry.Value(ctx, s.retry, func(ctx context.Context) (*domain.Payment, error) {
		return s.repo.FindByID(ctx, s.db, paymentID)
	})
	if err != nil {
		return domain.Payment{}, s.dbErr(err, "find payment")
	}
	if item == nil {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPaymentRequest) (domain.ListPaymentResponse, error) {
	page := req.Page.Normalize(s.billing.Get().PageLimitMax)
	filter := domain.ListPaymentFilter{
		Search:      strings.TrimSpace(req.Search),
		PaymentFrom: req.PaymentFrom,
		PaymentTo:   req.PaymentTo,
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}
	if strings.TrimSpace(req.InvoiceID) != "" {
		id, err := parseRef(req.InvoiceID, domain.ErrInvalidInvoiceID)
		if err != nil {
			return domain.ListPaymentResponse{}, err
		}
		filter.InvoiceID = &id
	}
	if method := strings.ToLower(strings.TrimSpace(req.Method)); method != "" {
		filter.Method = domain.PaymentMethod(method)
		if !filter.Method.Valid() {
			return domain.ListPaymentResponse{}, domain.ErrInvalidMethod
		}
	}
	if strings.TrimSpace(req.Currency) != "" {
		currency, err := money.ParseCurrency(req.Currency)
		if err != nil {
			return domain.ListPaymentResponse{}, domain.ErrInvalidCurrency
		}
		filter.Currency = currency
	}

	var (
		items []*domain.Payment
		total int64
	)
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, s.db, filter, page)
		return err
	})
	if err != nil {
		return domain.ListPaymentResponse{}, s.dbErr(err, "list payments")
	}

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}
	return domain.ListPaymentResponse{
		Payments:   payments,
		Pagination: pagination.NewInfo(page, total),
	}, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdatePaymentRequest) (domain.Payment, error) {
	paymentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Payment{}, err
	}

	var updated domain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, paymentID)
		if err != nil {
			return s.dbErr(err, "find payment")
		}
		if item == nil {
			return domain.ErrNotFound
		}

		if req.Amount != nil {
			item.Amount = money.Round2(*req.Amount)
		}
		if req.Currency != nil {
			currency, err := money.ParseCurrency(*req.Currency)
			if err != nil {
				return domain.ErrInvalidCurrency
			}
			item.Currency = currency
		}
		if req.PaymentDate != nil {
			item.PaymentDate = *req.PaymentDate
		}
		if req.PaymentMethod != nil {
			item.PaymentMethod = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(*req.PaymentMethod)))
		}
		if req.TransactionID != nil {
			item.TransactionID = trimmed(req.TransactionID)
		}
		if req.Notes != nil {
			item.Notes = req.Notes
		}
		if err := validate(*item); err != nil {
			return err
		}
		item.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, item); err != nil {
			return s.dbErr(err, "update payment")
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.log.Info("payment updated",
		zap.String("payment_id", updated.ID.String()),
		zap.String("invoice_id", updated.InvoiceID.String()),
	)
	s.recompute(ctx, updated.InvoiceID)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	paymentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return err
	}

	var invoiceID snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, paymentID)
		if err != nil {
			return s.dbErr(err, "find payment")
		}
		if item == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, paymentID); err != nil {
			return s.dbErr(err, "delete payment")
		}
		invoiceID = item.InvoiceID
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("payment deleted",
		zap.String("payment_id", paymentID.String()),
		zap.String("invoice_id", invoiceID.String()),
	)
	s.recompute(ctx, invoiceID)
	return nil
}

func (s *Service) recompute(ctx context.Context, invoiceID snowflake.ID) {
	if s.recomputer == nil {
		return
	}
	if err := s.recomputer.RecomputeStatus(ctx, invoiceID); err != nil {
		s.log.Warn("invoice status recompute failed",
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) findInvoice(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := retry.Value(ctx, s.retry, func(ctx context.Context) (*invoicedomain.Invoice, error) {
		return s.invoices.FindByID(ctx, s.db, id)
	})
	if err != nil {
		return nil, s.dbErr(err, "find invoice")
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

// paymentDate defaults to today.
func (s *Service) paymentDate(v *time.Time) time.Time {
	if v == nil || v.IsZero() {
		return clock.Today(s.clock)
	}
	return v.UTC()
}

func validate(p domain.Payment) error {
	switch {
	case p.Amount.IsZero():
		return domain.ErrInvalidAmount
	case !p.Currency.Valid():
		return domain.ErrInvalidCurrency
	case !p.PaymentMethod.Valid():
		return domain.ErrInvalidMethod
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

func parseRef(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
