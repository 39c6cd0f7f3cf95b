package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	List(ctx context.Context, db *gorm.DB, filter ListPaymentFilter, page pagination.Page) ([]*Payment, int64, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	ListCreatedBetween(ctx context.Context, db *gorm.DB, from, to *time.Time) ([]Payment, error)
	Update(ctx context.Context, db *gorm.DB, payment *Payment) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
