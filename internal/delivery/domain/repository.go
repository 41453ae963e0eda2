package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert replaces the whole row keyed by (customer_id, delivery_date).
	Upsert(ctx context.Context, db *gorm.DB, record *DeliveryRecord) error
	FindByKey(ctx context.Context, db *gorm.DB, customerID snowflake.ID, date time.Time) (*DeliveryRecord, error)
	// ListPeriod returns the customer's records with dates in [from, to],
	// ascending by date.
	ListPeriod(ctx context.Context, db *gorm.DB, customerID snowflake.ID, from, to time.Time) ([]DeliveryRecord, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]DeliveryRecord, error)
	DeleteByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) error
}
