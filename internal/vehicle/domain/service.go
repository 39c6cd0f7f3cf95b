package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
)

const VINLength = 17

type ListVehicleRequest struct {
	Search      string
	Status      string
	Make        string
	YearFrom    int
	YearTo      int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        pagination.Page
}

type ListVehicleFilter struct {
	Search      string
	Status      VehicleStatus
	Make        string
	YearFrom    int
	YearTo      int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListVehicleResponse struct {
	Vehicles   []Vehicle       `json:"vehicles"`
	Pagination pagination.Info `json:"pagination"`
}

type CreateVehicleRequest struct {
	VIN           string           `json:"vin" validate:"required"`
	Make          string           `json:"make" validate:"required,max=100"`
	Model         string           `json:"model" validate:"required,max=100"`
	Year          int              `json:"year" validate:"required,gte=1900"`
	Color         string           `json:"color" validate:"max=50"`
	Mileage       int              `json:"mileage" validate:"gte=0"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
	Currency      string           `json:"currency"`
	Status        string           `json:"status"`
	Metadata      map[string]any   `json:"metadata"`
}

type UpdateVehicleRequest struct {
	VIN           *string          `json:"vin"`
	Make          *string          `json:"make"`
	Model         *string          `json:"model"`
	Year          *int             `json:"year"`
	Color         *string          `json:"color"`
	Mileage       *int             `json:"mileage"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
	Currency      *string          `json:"currency"`
	Status        *string          `json:"status"`
	Metadata      map[string]any   `json:"metadata"`
}

type Service interface {
	Create(ctx context.Context, req CreateVehicleRequest) (Vehicle, error)
	GetByID(ctx context.Context, id string) (Vehicle, error)
	List(ctx context.Context, req ListVehicleRequest) (ListVehicleResponse, error)
	Update(ctx context.Context, id string, req UpdateVehicleRequest) (Vehicle, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidID       = ierr.NewError("invalid vehicle id").Mark(ierr.ErrValidation)
	ErrInvalidVIN      = ierr.NewErrorf("vin must be %d characters", VINLength).Mark(ierr.ErrValidation)
	ErrInvalidMake     = ierr.NewError("make is required").Mark(ierr.ErrValidation)
	ErrInvalidModel    = ierr.NewError("model is required").Mark(ierr.ErrValidation)
	ErrInvalidYear     = ierr.NewError("year is out of range").Mark(ierr.ErrValidation)
	ErrInvalidMileage  = ierr.NewError("mileage cannot be negative").Mark(ierr.ErrValidation)
	ErrInvalidPrice    = ierr.NewError("prices cannot be negative").Mark(ierr.ErrValidation)
	ErrInvalidCurrency = ierr.NewError("currency must be one of: AED, USD, CAD").Mark(ierr.ErrValidation)
	ErrInvalidStatus   = ierr.NewError("status must be one of: available, reserved, sold, exported").Mark(ierr.ErrValidation)
	ErrNotFound        = ierr.NewError("vehicle not found").Mark(ierr.ErrNotFound)
	ErrVINExists       = ierr.NewError("vehicle with this VIN already exists").Mark(ierr.ErrAlreadyExists)
	ErrInvoiced        = ierr.NewError("vehicle is referenced by invoices and cannot be deleted").Mark(ierr.ErrConflict)
)

// NormalizeVIN uppercases and trims a VIN and checks its length.
func NormalizeVIN(value string) (string, error) {
	vin := strings.ToUpper(strings.TrimSpace(value))
	if len(vin) != VINLength {
		return "", ErrInvalidVIN
	}
	return vin, nil
}

func formatTitle(year int, brand, model, vin string) string {
	return fmt.Sprintf("%d %s %s (VIN %s)", year, strings.TrimSpace(brand), strings.TrimSpace(model), vin)
}
