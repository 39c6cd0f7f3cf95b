package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindByIDForUpdate row-locks the invoice on dialects that support it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindLatest(ctx context.Context, db *gorm.DB) (*Invoice, error)
	ListNumbersWithPrefix(ctx context.Context, db *gorm.DB, prefix string) ([]string, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Page) ([]*Invoice, int64, error)
	ListOverdue(ctx context.Context, db *gorm.DB, today time.Time, page pagination.Page) ([]*Invoice, int64, error)
	ListCreatedBetween(ctx context.Context, db *gorm.DB, from, to *time.Time) ([]Invoice, error)
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status InvoiceStatus, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	ListPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]paymentdomain.Payment, error)
	CountPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
}
