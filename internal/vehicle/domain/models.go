package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/pkg/money"
	"gorm.io/datatypes"
)

type VehicleStatus string

const (
	VehicleStatusAvailable VehicleStatus = "available"
	VehicleStatusReserved  VehicleStatus = "reserved"
	VehicleStatusSold      VehicleStatus = "sold"
	VehicleStatusExported  VehicleStatus = "exported"
)

func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleStatusAvailable, VehicleStatusReserved, VehicleStatusSold, VehicleStatusExported:
		return true
	}
	return false
}

type Vehicle struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	VIN           string            `gorm:"column:vin;size:17;not null;uniqueIndex:ux_vehicles_vin" json:"vin"`
	Make          string            `gorm:"size:100;not null;index" json:"make"`
	Model         string            `gorm:"size:100;not null" json:"model"`
	Year          int               `gorm:"not null" json:"year"`
	Color         string            `gorm:"size:50" json:"color,omitempty"`
	Mileage       int               `gorm:"not null;default:0" json:"mileage"`
	PurchasePrice decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0" json:"purchase_price"`
	SalePrice     decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0" json:"sale_price"`
	Currency      money.Currency    `gorm:"size:3;not null" json:"currency"`
	Status        VehicleStatus     `gorm:"size:20;not null;index" json:"status"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null" json:"updated_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// Title is the line a vehicle is sold under, e.g. "2021 Toyota Land Cruiser (VIN JTMHV05J604123456)".
func (v Vehicle) Title() string {
	return formatTitle(v.Year, v.Make, v.Model, v.VIN)
}
