package domain

import (
	"context"
	"time"

	ierr "github.com/smallbiznis/autotrade/internal/errors"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
)

type ListCustomerRequest struct {
	Search      string
	Country     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        pagination.Page
}

type ListCustomerFilter struct {
	Search      string
	Country     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerResponse struct {
	Customers  []Customer      `json:"customers"`
	Pagination pagination.Info `json:"pagination"`
}

type CreateCustomerRequest struct {
	Name     string         `json:"name" validate:"required,max=255"`
	Email    string         `json:"email" validate:"required,max=255"`
	Phone    string         `json:"phone" validate:"max=64"`
	Address  string         `json:"address"`
	Country  string         `json:"country" validate:"max=64"`
	Metadata map[string]any `json:"metadata"`
}

// UpdateCustomerRequest only touches fields that are set.
type UpdateCustomerRequest struct {
	Name     *string        `json:"name"`
	Email    *string        `json:"email"`
	Phone    *string        `json:"phone"`
	Address  *string        `json:"address"`
	Country  *string        `json:"country"`
	Metadata map[string]any `json:"metadata"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (ListCustomerResponse, error)
	Update(ctx context.Context, id string, req UpdateCustomerRequest) (Customer, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidID    = ierr.NewError("invalid customer id").Mark(ierr.ErrValidation)
	ErrInvalidName  = ierr.NewError("name is required").Mark(ierr.ErrValidation)
	ErrInvalidEmail = ierr.NewError("email must be a valid email address").Mark(ierr.ErrValidation)
	ErrNotFound     = ierr.NewError("customer not found").Mark(ierr.ErrNotFound)
	ErrEmailExists  = ierr.NewError("customer with this email already exists").Mark(ierr.ErrAlreadyExists)
	ErrHasInvoices  = ierr.NewError("customer has invoices and cannot be deleted").Mark(ierr.ErrConflict)
)
