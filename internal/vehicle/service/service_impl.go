package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/clock"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	"github.com/smallbiznis/autotrade/internal/validator"
	"github.com/smallbiznis/autotrade/internal/vehicle/domain"
	"github.com/smallbiznis/autotrade/pkg/db"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"github.com/smallbiznis/autotrade/pkg/db/retry"
	"github.com/smallbiznis/autotrade/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const minYear = 1900

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Retry retry.Policy `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	retry retry.Policy
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("vehicle.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		retry: p.Retry,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateVehicleRequest) (domain.Vehicle, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Vehicle{}, err
	}

	vin, err := domain.NormalizeVIN(req.VIN)
	if err != nil {
		return domain.Vehicle{}, err
	}

	now := s.clock.Now()
	vehicle := domain.Vehicle{
		ID:            s.genID.Generate(),
		VIN:           vin,
		Make:          strings.TrimSpace(req.Make),
		Model:         strings.TrimSpace(req.Model),
		Year:          req.Year,
		Color:         strings.TrimSpace(req.Color),
		Mileage:       req.Mileage,
		PurchasePrice: decimal.Zero,
		SalePrice:     decimal.Zero,
		Currency:      money.CurrencyAED,
		Status:        domain.VehicleStatusAvailable,
		Metadata:      datatypes.JSONMap(req.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.PurchasePrice != nil {
		vehicle.PurchasePrice = money.Round2(*req.PurchasePrice)
	}
	if req.SalePrice != nil {
		vehicle.SalePrice = money.Round2(*req.SalePrice)
	}
	if strings.TrimSpace(req.Currency) != "" {
		currency, err := money.ParseCurrency(req.Currency)
		if err != nil {
			return domain.Vehicle{}, domain.ErrInvalidCurrency
		}
		vehicle.Currency = currency
	}
	if strings.TrimSpace(req.Status) != "" {
		vehicle.Status = domain.VehicleStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	}
	if vehicle.Metadata == nil {
		vehicle.Metadata = datatypes.JSONMap{}
	}
	if err := s.validate(vehicle); err != nil {
		return domain.Vehicle{}, err
	}

	existing, err := s.repo.FindByVIN(ctx, s.db, vin)
	if err != nil {
		return domain.Vehicle{}, s.dbErr(err, "lookup vehicle by vin")
	}
	if existing != nil {
		return domain.Vehicle{}, domain.ErrVINExists
	}

	if err := s.repo.Insert(ctx, s.db, &vehicle); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Vehicle{}, domain.ErrVINExists
		}
		return domain.Vehicle{}, s.dbErr(err, "insert vehicle")
	}

	s.log.Info("vehicle created",
		zap.String("vehicle_id", vehicle.ID.String()),
		zap.String("vin", vehicle.VIN),
	)
	return vehicle, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Vehicle, error) {
	vehicleID, err := parseID(id)
	if err != nil {
		return domain.Vehicle{}, err
	}

	item, err := retry.Value(ctx, s.retry, func(ctx context.Context) (*domain.Vehicle, error) {
		return s.repo.FindByID(ctx, s.db, vehicleID)
	})
	if err != nil {
		return domain.Vehicle{}, s.dbErr(err, "find vehicle")
	}
	if item == nil {
		return domain.Vehicle{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListVehicleRequest) (domain.ListVehicleResponse, error) {
	page := req.Page.Normalize(pagination.MaxLimit)
	filter := domain.ListVehicleFilter{
		Search:      strings.TrimSpace(req.Search),
		Make:        strings.TrimSpace(req.Make),
		YearFrom:    req.YearFrom,
		YearTo:      req.YearTo,
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		filter.Status = domain.VehicleStatus(status)
		if !filter.Status.Valid() {
			return domain.ListVehicleResponse{}, domain.ErrInvalidStatus
		}
	}

	var (
		items []*domain.Vehicle
		total int64
	)
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, s.db, filter, page)
		return err
	})
	if err != nil {
		return domain.ListVehicleResponse{}, s.dbErr(err, "list vehicles")
	}

	vehicles := make([]domain.Vehicle, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		vehicles = append(vehicles, *item)
	}

	return domain.ListVehicleResponse{
		Vehicles:   vehicles,
		Pagination: pagination.NewInfo(page, total),
	}, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateVehicleRequest) (domain.Vehicle, error) {
	vehicleID, err := parseID(id)
	if err != nil {
		return domain.Vehicle{}, err
	}

	var updated domain.Vehicle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, vehicleID)
		if err != nil {
			return s.dbErr(err, "find vehicle")
		}
		if item == nil {
			return domain.ErrNotFound
		}

		if req.VIN != nil {
			vin, err := domain.NormalizeVIN(*req.VIN)
			if err != nil {
				return err
			}
			if vin != item.VIN {
				existing, err := s.repo.FindByVIN(ctx, tx, vin)
				if err != nil {
					return s.dbErr(err, "lookup vehicle by vin")
				}
				if existing != nil && existing.ID != item.ID {
					return domain.ErrVINExists
				}
			}
			item.VIN = vin
		}
		if req.Make != nil {
			item.Make = strings.TrimSpace(*req.Make)
		}
		if req.Model != nil {
			item.Model = strings.TrimSpace(*req.Model)
		}
		if req.Year != nil {
			item.Year = *req.Year
		}
		if req.Color != nil {
			item.Color = strings.TrimSpace(*req.Color)
		}
		if req.Mileage != nil {
			item.Mileage = *req.Mileage
		}
		if req.PurchasePrice != nil {
			item.PurchasePrice = money.Round2(*req.PurchasePrice)
		}
		if req.SalePrice != nil {
			item.SalePrice = money.Round2(*req.SalePrice)
		}
		if req.Currency != nil {
			currency, err := money.ParseCurrency(*req.Currency)
			if err != nil {
				return domain.ErrInvalidCurrency
			}
			item.Currency = currency
		}
		if req.Status != nil {
			item.Status = domain.VehicleStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		}
		if req.Metadata != nil {
			item.Metadata = datatypes.JSONMap(req.Metadata)
		}
		if err := s.validate(*item); err != nil {
			return err
		}
		item.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrVINExists
			}
			return s.dbErr(err, "update vehicle")
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.Vehicle{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	vehicleID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, vehicleID)
		if err != nil {
			return s.dbErr(err, "find vehicle")
		}
		if item == nil {
			return domain.ErrNotFound
		}

		invoices, err := s.repo.CountInvoices(ctx, tx, vehicleID)
		if err != nil {
			return s.dbErr(err, "count vehicle invoices")
		}
		if invoices > 0 {
			return domain.ErrInvoiced
		}

		if err := s.repo.Delete(ctx, tx, vehicleID); err != nil {
			return s.dbErr(err, "delete vehicle")
		}
		s.log.Info("vehicle deleted", zap.String("vehicle_id", vehicleID.String()))
		return nil
	})
}

func (s *Service) validate(v domain.Vehicle) error {
	switch {
	case v.Make == "":
		return domain.ErrInvalidMake
	case v.Model == "":
		return domain.ErrInvalidModel
	case v.Year < minYear || v.Year > s.clock.Now().Year()+1:
		return domain.ErrInvalidYear
	case v.Mileage < 0:
		return domain.ErrInvalidMileage
	case v.PurchasePrice.IsNegative() || v.SalePrice.IsNegative():
		return domain.ErrInvalidPrice
	case !v.Currency.Valid():
		return domain.ErrInvalidCurrency
	case !v.Status.Valid():
		return domain.ErrInvalidStatus
	}
	return nil
}

func (s *Service) dbErr(err error, op string) error {
	s.log.Error(op+" failed", zap.Error(err))
	return ierr.WithError(err).
		WithMessage(op).
		WithHint("Failed to " + op).
		Mark(ierr.ErrDatabase)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
