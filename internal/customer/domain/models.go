package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Customer is a doorstep-delivery customer. DefaultQuantity is the liters
// delivered on a normal day and the billing fallback when a delivered day was
// recorded without an explicit quantity.
type Customer struct {
	ID              snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name            string            `gorm:"not null" json:"name"`
	Address         string            `gorm:"not null" json:"address"`
	Phone           string            `gorm:"type:text" json:"phone,omitempty"`
	DefaultQuantity decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"default_quantity"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

// Key is the changefeed identity for the customer.
func (c Customer) Key() string { return c.ID.String() }
