package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/milkroute/ledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*Customer, error)
	// ListAfter pages customers in ascending ID order for batch scans.
	ListAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]Customer, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
