package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PaymentLedgerEntry is the bill for one (customer, month, year). AmountDue
// is computed once when the entry is first reconciled and never refreshed;
// later delivery edits do not reprice an already-cut bill.
type PaymentLedgerEntry struct {
	CustomerID  snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"customer_id"`
	Month       int             `gorm:"primaryKey;autoIncrement:false" json:"month"`
	Year        int             `gorm:"primaryKey;autoIncrement:false" json:"year"`
	AmountDue   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_due"`
	AmountPaid  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_paid"`
	Currency    string          `gorm:"type:text;not null" json:"currency"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (PaymentLedgerEntry) TableName() string { return "payment_ledger_entries" }

// Key is the changefeed identity for the entry.
func (e PaymentLedgerEntry) Key() string {
	return EntryKey(e.CustomerID, e.Month, e.Year)
}

func EntryKey(customerID snowflake.ID, month, year int) string {
	return fmt.Sprintf("%s:%04d-%02d", customerID, year, month)
}

// Outstanding is the unpaid remainder; negative when overpaid. Pending,
// partial and overpaid are all valid states.
func (e PaymentLedgerEntry) Outstanding() decimal.Decimal {
	return e.AmountDue.Sub(e.AmountPaid)
}
