package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/milkroute/ledger/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type CreateCustomerRequest struct {
	Name            string
	Address         string
	Phone           string
	DefaultQuantity decimal.Decimal
}

type UpdateCustomerRequest struct {
	ID              snowflake.ID
	Name            string
	Address         string
	Phone           string
	DefaultQuantity decimal.Decimal
}

type ListCustomerRequest struct {
	PageToken string
	PageSize  int
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	GetByID(ctx context.Context, id snowflake.ID) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	// Delete removes the customer and, in the same transaction, every
	// delivery record and payment-ledger entry referencing it.
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidAddress  = errors.New("invalid_address")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrNotFound        = errors.New("not_found")
)
