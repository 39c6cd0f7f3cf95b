package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/vehicle/domain"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, vehicle *domain.Vehicle) error {
	return db.WithContext(ctx).Create(vehicle).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Vehicle, error) {
	return r.first(ctx, db, "id = ?", id)
}

func (r *repo) FindByVIN(ctx context.Context, db *gorm.DB, vin string) (*domain.Vehicle, error) {
	return r.first(ctx, db, "vin = ?", strings.ToUpper(strings.TrimSpace(vin)))
}

func (r *repo) first(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	err := db.WithContext(ctx).Where(query, args...).Take(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vehicle, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListVehicleFilter, page pagination.Page) ([]*domain.Vehicle, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Vehicle{})
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where("LOWER(vin) LIKE ? OR LOWER(make) LIKE ? OR LOWER(model) LIKE ?", like, like, like)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Make != "" {
		stmt = stmt.Where("LOWER(make) = ?", strings.ToLower(filter.Make))
	}
	if filter.YearFrom > 0 {
		stmt = stmt.Where("year >= ?", filter.YearFrom)
	}
	if filter.YearTo > 0 {
		stmt = stmt.Where("year <= ?", filter.YearTo)
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

	var vehicles []*domain.Vehicle
	err := stmt.
		Order("created_at desc, id desc").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&vehicles).Error
	if err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, vehicle *domain.Vehicle) error {
	return db.WithContext(ctx).Save(vehicle).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Vehicle{}).Error
}

func (r *repo) CountInvoices(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Table("invoices").Where("vehicle_id = ?", id).Count(&count).Error
	return count, err
}
