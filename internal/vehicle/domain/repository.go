package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, vehicle *Vehicle) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Vehicle, error)
	FindByVIN(ctx context.Context, db *gorm.DB, vin string) (*Vehicle, error)
	List(ctx context.Context, db *gorm.DB, filter ListVehicleFilter, page pagination.Page) ([]*Vehicle, int64, error)
	Update(ctx context.Context, db *gorm.DB, vehicle *Vehicle) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CountInvoices(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
