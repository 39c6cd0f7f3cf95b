package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert writes the invoice and its items in one statement batch.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(ctx, db, db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	stmt := db.WithContext(ctx)
	// sqlite locks the whole database for writers and rejects FOR UPDATE.
	if stmt.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(ctx, db, stmt, id)
}

func (r *repo) find(ctx context.Context, db, stmt *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := stmt.Where("id = ?", id).Take(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var items []domain.InvoiceItem
	if err := db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("created_at asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	invoice.Items = items
	return &invoice, nil
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Limit(1).
		Take(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) ListNumbersWithPrefix(ctx context.Context, db *gorm.DB, prefix string) ([]string, error) {
	var numbers []string
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Pluck("invoice_number", &numbers).Error
	return numbers, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Page) ([]*domain.Invoice, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where("LOWER(invoice_number) LIKE ? OR LOWER(notes) LIKE ? OR LOWER(payment_terms) LIKE ?", like, like, like)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.VehicleID != nil {
		stmt = stmt.Where("vehicle_id = ?", *filter.VehicleID)
	}
	if filter.Currency != "" {
		stmt = stmt.Where("currency = ?", filter.Currency)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	if filter.DueFrom != nil {
		stmt = stmt.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		stmt = stmt.Where("due_date <= ?", *filter.DueTo)
	}

	return r.page(stmt, page, "created_at desc, id desc")
}

func (r *repo) ListOverdue(ctx context.Context, db *gorm.DB, today time.Time, page pagination.Page) ([]*domain.Invoice, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("due_date IS NOT NULL AND due_date < ?", today).
		Where("status NOT IN ?", []domain.InvoiceStatus{domain.InvoiceStatusFullyPaid, domain.InvoiceStatusCancelled})
	return r.page(stmt, page, "due_date asc, id asc")
}

func (r *repo) page(stmt *gorm.DB, page pagination.Page, order string) ([]*domain.Invoice, int64, error) {
	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []*domain.Invoice
	err := stmt.
		Order(order).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *repo) ListCreatedBetween(ctx context.Context, db *gorm.DB, from, to *time.Time) ([]domain.Invoice, error) {
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if from != nil {
		stmt = stmt.Where("created_at >= ?", *from)
	}
	if to != nil {
		stmt = stmt.Where("created_at <= ?", *to)
	}
	var invoices []domain.Invoice
	err := stmt.Order("created_at asc, id asc").Find(&invoices).Error
	return invoices, err
}

// Update writes the invoice row only; items are left untouched.
func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Omit(clause.Associations).Save(invoice).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.InvoiceStatus, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Where("invoice_id = ?", id).Delete(&domain.InvoiceItem{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Invoice{}).Error
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	var payments []paymentdomain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("payment_date asc, id asc").
		Find(&payments).Error
	return payments, err
}

func (r *repo) CountPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&paymentdomain.Payment{}).Where("invoice_id = ?", invoiceID).Count(&count).Error
	return count, err
}
