// Package seed bootstraps a development database with a showroom customer
// and a few vehicles so the invoice flows can be exercised right away.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/clock"
	customerdomain "github.com/smallbiznis/autotrade/internal/customer/domain"
	vehicledomain "github.com/smallbiznis/autotrade/internal/vehicle/domain"
	"github.com/smallbiznis/autotrade/pkg/money"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultCustomerName  = "Walk-in Customer"
	defaultCustomerEmail = "walkin@autotrade.local"
)

type demoVehicle struct {
	VIN      string
	Make     string
	Model    string
	Year     int
	Color    string
	Mileage  int
	Purchase int64
	Sale     int64
	Currency money.Currency
}

var demoVehicles = []demoVehicle{
	{"JTMHV05J604100001", "Toyota", "Land Cruiser", 2021, "White", 42000, 180000, 210000, money.CurrencyAED},
	{"JN1TANY62U0100002", "Nissan", "Patrol", 2020, "Black", 65000, 140000, 165000, money.CurrencyAED},
	{"1FTFW1E50P0100003", "Ford", "F-150", 2023, "Blue", 12000, 38000, 46500, money.CurrencyUSD},
}

// Result reports what EnsureDemoData inserted.
type Result struct {
	CustomerCreated bool
	VehiclesCreated int
}

// EnsureDemoData inserts the demo customer and vehicles that are missing.
// Existing rows, matched by email and VIN, are left untouched.
func EnsureDemoData(ctx context.Context, db *gorm.DB, node *snowflake.Node, clk clock.Clock) (Result, error) {
	if db == nil {
		return Result{}, errors.New("seed database handle is required")
	}
	if node == nil || clk == nil {
		return Result{}, errors.New("seed id generator and clock are required")
	}

	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := ensureCustomerTx(ctx, tx, node, clk.Now())
		if err != nil {
			return err
		}
		res.CustomerCreated = created

		for _, v := range demoVehicles {
			created, err := ensureVehicleTx(ctx, tx, node, clk.Now(), v)
			if err != nil {
				return err
			}
			if created {
				res.VehiclesCreated++
			}
		}
		return nil
	})
	return res, err
}

func ensureCustomerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time) (bool, error) {
	var existing customerdomain.Customer
	err := tx.WithContext(ctx).Where("email = ?", defaultCustomerEmail).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	customer := customerdomain.Customer{
		ID:        node.Generate(),
		Name:      defaultCustomerName,
		Email:     defaultCustomerEmail,
		Country:   "AE",
		Metadata:  datatypes.JSONMap{"source": "seed"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, tx.WithContext(ctx).Create(&customer).Error
}

func ensureVehicleTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time, v demoVehicle) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&vehicledomain.Vehicle{}).Where("vin = ?", v.VIN).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	vehicle := vehicledomain.Vehicle{
		ID:            node.Generate(),
		VIN:           v.VIN,
		Make:          v.Make,
		Model:         v.Model,
		Year:          v.Year,
		Color:         v.Color,
		Mileage:       v.Mileage,
		PurchasePrice: decimal.NewFromInt(v.Purchase),
		SalePrice:     decimal.NewFromInt(v.Sale),
		Currency:      v.Currency,
		Status:        vehicledomain.VehicleStatusAvailable,
		Metadata:      datatypes.JSONMap{"source": "seed"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return true, tx.WithContext(ctx).Create(&vehicle).Error
}
