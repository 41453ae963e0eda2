package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type RecordDeliveryRequest struct {
	CustomerID   snowflake.ID
	Date         time.Time
	Status       Status
	Quantity     decimal.Decimal
	DeliveryTime *time.Time
	PhotoRef     string
	Notes        string
	RecordedBy   string
}

// AttendanceSummary covers the elapsed portion of one billing period.
type AttendanceSummary struct {
	CountedDays int     `json:"counted_days"`
	PresentDays int     `json:"present_days"`
	AbsentDays  int     `json:"absent_days"`
	Rate        float64 `json:"rate"`
}

type Service interface {
	// RecordDelivery is the sole write path for delivery outcomes.
	RecordDelivery(context.Context, RecordDeliveryRequest) (DeliveryRecord, error)
	// ReconstructMonth returns one slot per calendar day, ascending.
	ReconstructMonth(ctx context.Context, customerID snowflake.ID, month time.Month, year int) ([]DaySlot, error)
	// Attendance aggregates the month's slots up to the as-of instant.
	Attendance(ctx context.Context, customerID snowflake.ID, month time.Month, year int, asOf time.Time) (AttendanceSummary, error)
}

var (
	ErrInvalidCustomer  = errors.New("invalid_customer")
	ErrInvalidDate      = errors.New("invalid_date")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidPeriod    = errors.New("invalid_period")
	ErrNegativeQuantity = errors.New("negative_quantity")

	// ErrLedgerWriteFailed wraps store rejections on the write path and store
	// failures on read paths. Callers own retries.
	ErrLedgerWriteFailed = errors.New("ledger_write_failed")
)
