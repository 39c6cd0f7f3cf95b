package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/autotrade/internal/customer/domain"
	vehicledomain "github.com/smallbiznis/autotrade/internal/vehicle/domain"
	"github.com/smallbiznis/autotrade/pkg/money"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedCustomer(t *testing.T, db *gorm.DB, node *snowflake.Node, email string) customerdomain.Customer {
	t.Helper()
	now := time.Now().UTC()
	c := customerdomain.Customer{
		ID:        node.Generate(),
		Name:      "Test Customer",
		Email:     email,
		Country:   "AE",
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func SeedVehicle(t *testing.T, db *gorm.DB, node *snowflake.Node, vin string, salePrice decimal.Decimal, currency money.Currency) vehicledomain.Vehicle {
	t.Helper()
	now := time.Now().UTC()
	v := vehicledomain.Vehicle{
		ID:            node.Generate(),
		VIN:           vin,
		Make:          "Toyota",
		Model:         "Land Cruiser",
		Year:          2021,
		Color:         "White",
		Mileage:       42000,
		PurchasePrice: decimal.NewFromInt(180000),
		SalePrice:     salePrice,
		Currency:      currency,
		Status:        vehicledomain.VehicleStatusAvailable,
		Metadata:      datatypes.JSONMap{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(&v).Error; err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return v
}
