package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/milkroute/ledger/internal/billing/domain"
	"github.com/milkroute/ledger/internal/changefeed"
	"github.com/milkroute/ledger/internal/config"
	customerdomain "github.com/milkroute/ledger/internal/customer/domain"
	deliverydomain "github.com/milkroute/ledger/internal/delivery/domain"
	"github.com/milkroute/ledger/pkg/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Repo         domain.Repository
	DeliveryRepo deliverydomain.Repository
	CustomerRepo customerdomain.Repository
	Pricing      *config.PricingHolder
	Feed         changefeed.Feed
	Metrics      *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	repo         domain.Repository
	deliveryRepo deliverydomain.Repository
	customerRepo customerdomain.Repository
	pricing      *config.PricingHolder
	feed         changefeed.Feed
	metrics      *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("billing.service"),
		repo:         p.Repo,
		deliveryRepo: p.DeliveryRepo,
		customerRepo: p.CustomerRepo,
		pricing:      p.Pricing,
		feed:         p.Feed,
		metrics:      p.Metrics,
	}
}

func (s *Service) EnsurePaymentEntry(ctx context.Context, customerID snowflake.ID, month, year int) (domain.PaymentLedgerEntry, bool, error) {
	if customerID == 0 {
		return domain.PaymentLedgerEntry{}, false, domain.ErrInvalidCustomer
	}
	if !validPeriod(month, year) {
		return domain.PaymentLedgerEntry{}, false, domain.ErrInvalidPeriod
	}

	amountDue, currency, err := s.priceForPeriod(ctx, customerID, month, year)
	if err != nil {
		return domain.PaymentLedgerEntry{}, false, err
	}

	now := time.Now().UTC()
	entry := domain.PaymentLedgerEntry{
		CustomerID: customerID,
		Month:      month,
		Year:       year,
		AmountDue:  amountDue,
		AmountPaid: decimal.Zero,
		Currency:   currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.repo.InsertIfAbsent(ctx, s.db, &entry)
	if err != nil {
		return domain.PaymentLedgerEntry{}, false, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}

	if !created {
		// Lost the race or already reconciled earlier: the stored entry wins,
		// amount_due is frozen at first reconciliation.
		existing, err := s.repo.FindByKey(ctx, s.db, customerID, month, year)
		if err != nil {
			return domain.PaymentLedgerEntry{}, false, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
		}
		if existing == nil {
			return domain.PaymentLedgerEntry{}, false, domain.ErrEntryNotFound
		}
		return *existing, false, nil
	}

	s.feed.Publish(ctx, changefeed.Event{
		Op:    changefeed.OpInsert,
		Table: changefeed.TablePaymentEntry,
		Key:   entry.Key(),
		Row:   entry,
	})

	s.log.Info("payment entry created",
		zap.String("customer_id", customerID.String()),
		zap.Int("month", month),
		zap.Int("year", year),
		zap.String("amount_due", amountDue.String()),
	)

	return entry, true, nil
}

func (s *Service) EnsurePaymentEntriesForAll(ctx context.Context, customerIDs []snowflake.ID, month, year int) []domain.ReconcileOutcome {
	outcomes := make([]domain.ReconcileOutcome, 0, len(customerIDs))
	for _, customerID := range customerIDs {
		_, created, err := s.EnsurePaymentEntry(ctx, customerID, month, year)
		outcomes = append(outcomes, domain.ReconcileOutcome{
			CustomerID: customerID,
			Created:    created,
			Err:        err,
		})
	}
	return outcomes
}

func (s *Service) AmountDueForPeriod(ctx context.Context, customerID snowflake.ID, month, year int) (decimal.Decimal, error) {
	if customerID == 0 {
		return decimal.Zero, domain.ErrInvalidCustomer
	}
	if !validPeriod(month, year) {
		return decimal.Zero, domain.ErrInvalidPeriod
	}

	amount, _, err := s.priceForPeriod(ctx, customerID, month, year)
	return amount, err
}

func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.PaymentLedgerEntry, error) {
	if req.CustomerID == 0 {
		return domain.PaymentLedgerEntry{}, domain.ErrInvalidCustomer
	}
	if !validPeriod(req.Month, req.Year) {
		return domain.PaymentLedgerEntry{}, domain.ErrInvalidPeriod
	}
	if req.Amount.IsNegative() {
		return domain.PaymentLedgerEntry{}, domain.ErrNegativeAmount
	}

	entry, err := s.repo.FindByKey(ctx, s.db, req.CustomerID, req.Month, req.Year)
	if err != nil {
		return domain.PaymentLedgerEntry{}, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}
	if entry == nil {
		return domain.PaymentLedgerEntry{}, domain.ErrEntryNotFound
	}

	// Overpayment and partial payment are both valid; only payment fields
	// change, amount_due stays as billed.
	entry.AmountPaid = req.Amount
	entry.PaymentDate = req.PaymentDate
	entry.Notes = req.Notes
	entry.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, entry); err != nil {
		return domain.PaymentLedgerEntry{}, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}

	s.feed.Publish(ctx, changefeed.Event{
		Op:    changefeed.OpUpdate,
		Table: changefeed.TablePaymentEntry,
		Key:   entry.Key(),
		Row:   *entry,
	})

	return *entry, nil
}

func (s *Service) GetEntry(ctx context.Context, customerID snowflake.ID, month, year int) (*domain.PaymentLedgerEntry, error) {
	if customerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	if !validPeriod(month, year) {
		return nil, domain.ErrInvalidPeriod
	}
	return s.repo.FindByKey(ctx, s.db, customerID, month, year)
}

func (s *Service) priceForPeriod(ctx context.Context, customerID snowflake.ID, month, year int) (decimal.Decimal, string, error) {
	customer, err := s.customerRepo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}
	if customer == nil {
		return decimal.Zero, "", domain.ErrInvalidCustomer
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.Month(month), deliverydomain.DaysInMonth(time.Month(month), year), 0, 0, 0, 0, time.UTC)

	records, err := s.deliveryRepo.ListPeriod(ctx, s.db, customerID, from, to)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}

	pricing := s.pricing.Get()
	return AmountDue(records, customer.DefaultQuantity, pricing.PricePerLiter), pricing.Currency, nil
}

func validPeriod(month, year int) bool {
	return month >= 1 && month <= 12 && year > 0
}
