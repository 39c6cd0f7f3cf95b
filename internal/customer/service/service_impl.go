package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/customer/domain"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
	"github.com/smallbiznis/autotrade/internal/validator"
	"github.com/smallbiznis/autotrade/pkg/db"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"github.com/smallbiznis/autotrade/pkg/db/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		retry: p.Retry,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return domain.Customer{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.Customer{}, err
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Customer{}, s.dbErr(err, "lookup customer by email")
	}
	if existing != nil {
		return domain.Customer{}, domain.ErrEmailExists
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Country:   strings.TrimSpace(req.Country),
		Metadata:  datatypes.JSONMap(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if customer.Metadata == nil {
		customer.Metadata = datatypes.JSONMap{}
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Customer{}, domain.ErrEmailExists
		}
		return domain.Customer{}, s.dbErr(err, "insert customer")
	}

	s.log.Info("customer created", zap.String("customer_id", customer.ID.String()))
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	customerID, err := parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := retry.Value(ctx, s.retry, func(ctx context.Context) (*domain.Customer, error) {
		return s.repo.FindByID(ctx, s.db, customerID)
	})
	if err != nil {
		return domain.Customer{}, s.dbErr(err, "find customer")
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	page := req.Page.Normalize(pagination.MaxLimit)
	filter := domain.ListCustomerFilter{
		Search:      strings.TrimSpace(req.Search),
		Country:     strings.TrimSpace(req.Country),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}

	var (
		items []*domain.Customer
		total int64
	)
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, s.db, filter, page)
		return err
	})
	if err != nil {
		return domain.ListCustomerResponse{}, s.dbErr(err, "list customers")
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{
		Customers:  customers,
		Pagination: pagination.NewInfo(page, total),
	}, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	customerID, err := parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	var updated domain.Customer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, customerID)
		if err != nil {
			return s.dbErr(err, "find customer")
		}
		if item == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			item.Name = name
		}
		if req.Email != nil {
			email, err := normalizeEmail(*req.Email)
			if err != nil {
				return err
			}
			if !strings.EqualFold(email, item.Email) {
				existing, err := s.repo.FindByEmail(ctx, tx, email)
				if err != nil {
					return s.dbErr(err, "lookup customer by email")
				}
				if existing != nil && existing.ID != item.ID {
					return domain.ErrEmailExists
				}
			}
			item.Email = email
		}
		if req.Phone != nil {
			item.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Address != nil {
			item.Address = strings.TrimSpace(*req.Address)
		}
		if req.Country != nil {
			item.Country = strings.TrimSpace(*req.Country)
		}
		if req.Metadata != nil {
			item.Metadata = datatypes.JSONMap(req.Metadata)
		}
		item.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrEmailExists
			}
			return s.dbErr(err, "update customer")
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	customerID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, customerID)
		if err != nil {
			return s.dbErr(err, "find customer")
		}
		if item == nil {
			return domain.ErrNotFound
		}

		invoices, err := s.repo.CountInvoices(ctx, tx, customerID)
		if err != nil {
			return s.dbErr(err, "count customer invoices")
		}
		if invoices > 0 {
			return domain.ErrHasInvoices
		}

		if err := s.repo.Delete(ctx, tx, customerID); err != nil {
			return s.dbErr(err, "delete customer")
		}
		s.log.Info("customer deleted", zap.String("customer_id", customerID.String()))
		return nil
	})
}

func (s *Service) dbErr(err error, op string) error {
	s.log.Error(op+" failed", zap.Error(err))
	return ierr.WithError(err).
		WithMessage(op).
		WithHint("Failed to " + op).
		Mark(ierr.ErrDatabase)
}

func normalizeEmail(value string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(value))
	if email == "" || !strings.Contains(email, "@") {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
