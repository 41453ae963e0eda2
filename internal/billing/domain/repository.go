package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent creates the entry unless its key already exists. The
	// conditional insert happens at the store, closing the window between a
	// concurrent check and insert. Returns whether a row was created.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, entry *PaymentLedgerEntry) (bool, error)
	FindByKey(ctx context.Context, db *gorm.DB, customerID snowflake.ID, month, year int) (*PaymentLedgerEntry, error)
	Update(ctx context.Context, db *gorm.DB, entry *PaymentLedgerEntry) error
	ListAll(ctx context.Context, db *gorm.DB) ([]PaymentLedgerEntry, error)
	DeleteByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) error
}
