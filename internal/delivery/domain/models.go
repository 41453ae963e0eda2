package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status is the recorded outcome for one customer-day.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusMissed    Status = "missed"
	StatusHoliday   Status = "holiday"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDelivered, StatusMissed, StatusHoliday:
		return true
	}
	return false
}

// DeliveryRecord is the stored outcome for one (customer, date). The pair is
// the identity: a write for an existing pair replaces the whole row.
type DeliveryRecord struct {
	CustomerID   snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"customer_id"`
	DeliveryDate time.Time       `gorm:"primaryKey;type:date" json:"delivery_date"`
	Status       Status          `gorm:"type:text;not null" json:"status"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	DeliveryTime *time.Time      `json:"delivery_time,omitempty"`
	PhotoRef     string          `gorm:"type:text" json:"photo_ref,omitempty"`
	Notes        string          `gorm:"type:text" json:"notes,omitempty"`
	RecordedBy   string          `gorm:"type:text" json:"recorded_by,omitempty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (DeliveryRecord) TableName() string { return "delivery_records" }

// Key is the changefeed identity for the record.
func (r DeliveryRecord) Key() string {
	return RecordKey(r.CustomerID, r.DeliveryDate)
}

func RecordKey(customerID snowflake.ID, date time.Time) string {
	return fmt.Sprintf("%s:%s", customerID, date.UTC().Format(time.DateOnly))
}

// DateOnly truncates t to midnight UTC, the canonical delivery-date form.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaySlot is one calendar day of a reconstructed month. It lives for the
// duration of a single reconstruction call and is never persisted. A nil
// Record means the slot was synthesized because no row exists for that day.
type DaySlot struct {
	Day      int
	Date     time.Time
	Status   Status
	Quantity decimal.Decimal
	Record   *DeliveryRecord
}

// DaysInMonth returns the day count of the month in the proleptic Gregorian
// calendar; February follows the standard leap-year rule.
func DaysInMonth(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
