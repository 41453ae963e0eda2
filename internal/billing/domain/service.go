package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ReconcileOutcome is the per-customer result of a batch reconciliation pass.
// Entries are independent; some customers failing is a terminal state, not a
// rollback trigger.
type ReconcileOutcome struct {
	CustomerID snowflake.ID
	Created    bool
	Err        error
}

type RecordPaymentRequest struct {
	CustomerID  snowflake.ID
	Month       int
	Year        int
	Amount      decimal.Decimal
	PaymentDate *time.Time
	Notes       string
}

type Service interface {
	// EnsurePaymentEntry creates the period's entry if absent; an existing
	// entry is returned untouched, stale amount_due included.
	EnsurePaymentEntry(ctx context.Context, customerID snowflake.ID, month, year int) (PaymentLedgerEntry, bool, error)
	EnsurePaymentEntriesForAll(ctx context.Context, customerIDs []snowflake.ID, month, year int) []ReconcileOutcome
	// AmountDueForPeriod prices the period's delivered days without touching
	// the payment ledger.
	AmountDueForPeriod(ctx context.Context, customerID snowflake.ID, month, year int) (decimal.Decimal, error)
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (PaymentLedgerEntry, error)
	GetEntry(ctx context.Context, customerID snowflake.ID, month, year int) (*PaymentLedgerEntry, error)
}

var (
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrInvalidPeriod   = errors.New("invalid_period")
	ErrNegativeAmount  = errors.New("negative_amount")
	ErrEntryNotFound   = errors.New("entry_not_found")

	// ErrLedgerWriteFailed wraps store rejections; callers own retries.
	ErrLedgerWriteFailed = errors.New("ledger_write_failed")
)
