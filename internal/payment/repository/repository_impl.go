package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Where("id = ?", id).Take(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPaymentFilter, page pagination.Page) ([]*domain.Payment, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Payment{})
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where("LOWER(transaction_id) LIKE ? OR LOWER(notes) LIKE ? OR LOWER(created_by) LIKE ?", like, like, like)
	}
	if filter.InvoiceID != nil {
		stmt = stmt.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Method != "" {
		stmt = stmt.Where("payment_method = ?", filter.Method)
	}
	if filter.Currency != "" {
		stmt = stmt.Where("currency = ?", filter.Currency)
	}
	if filter.PaymentFrom != nil {
		stmt = stmt.Where("payment_date >= ?", *filter.PaymentFrom)
	}
	if filter.PaymentTo != nil {
		stmt = stmt.Where("payment_date <= ?", *filter.PaymentTo)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []*domain.Payment
	err := stmt.
		Order("created_at desc, id desc").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("payment_date asc, id asc").
		Find(&payments).Error
	return payments, err
}

func (r *repo) ListCreatedBetween(ctx context.Context, db *gorm.DB, from, to *time.Time) ([]domain.Payment, error) {
	stmt := db.WithContext(ctx).Model(&domain.Payment{})
	if from != nil {
		stmt = stmt.Where("created_at >= ?", *from)
	}
	if to != nil {
		stmt = stmt.Where("created_at <= ?", *to)
	}
	var payments []domain.Payment
	err := stmt.Order("created_at asc, id asc").Find(&payments).Error
	return payments, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Save(payment).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Payment{}).Error
}
