package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/milkroute/ledger/internal/changefeed"
	"github.com/milkroute/ledger/internal/clock"
	"github.com/milkroute/ledger/internal/delivery/domain"
	"github.com/milkroute/ledger/pkg/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Feed    changefeed.Feed
	Clock   clock.Clock
	Metrics *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	feed    changefeed.Feed
	clock   clock.Clock
	metrics *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("delivery.service"),
		repo:    p.Repo,
		feed:    p.Feed,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) RecordDelivery(ctx context.Context, req domain.RecordDeliveryRequest) (domain.DeliveryRecord, error) {
	if req.CustomerID == 0 {
		return domain.DeliveryRecord{}, domain.ErrInvalidCustomer
	}
	if req.Date.IsZero() {
		return domain.DeliveryRecord{}, domain.ErrInvalidDate
	}
	if !req.Status.Valid() {
		return domain.DeliveryRecord{}, domain.ErrInvalidStatus
	}
	if req.Quantity.IsNegative() {
		return domain.DeliveryRecord{}, domain.ErrNegativeQuantity
	}

	// Quantity is only meaningful for delivered days; the writer normalizes
	// rather than trusting the caller.
	quantity := req.Quantity
	if req.Status != domain.StatusDelivered {
		quantity = decimal.Zero
	}

	now := s.clock.Now()
	record := domain.DeliveryRecord{
		CustomerID:   req.CustomerID,
		DeliveryDate: domain.DateOnly(req.Date),
		Status:       req.Status,
		Quantity:     quantity,
		DeliveryTime: req.DeliveryTime,
		PhotoRef:     req.PhotoRef,
		Notes:        req.Notes,
		RecordedBy:   req.RecordedBy,
		CreatedAt:    now,
	}

	if err := s.repo.Upsert(ctx, s.db, &record); err != nil {
		if s.metrics != nil {
			s.metrics.IncDeliveryWriteError()
		}
		return domain.DeliveryRecord{}, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}

	s.feed.Publish(ctx, changefeed.Event{
		Op:    changefeed.OpUpdate,
		Table: changefeed.TableDeliveryRecord,
		Key:   record.Key(),
		Row:   record,
	})
	if s.metrics != nil {
		s.metrics.IncDeliveryRecorded(string(record.Status))
	}

	s.log.Debug("delivery recorded",
		zap.String("customer_id", record.CustomerID.String()),
		zap.String("date", record.DeliveryDate.Format(time.DateOnly)),
		zap.String("status", string(record.Status)),
	)

	return record, nil
}

func (s *Service) ReconstructMonth(ctx context.Context, customerID snowflake.ID, month time.Month, year int) ([]domain.DaySlot, error) {
	if customerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	if month < time.January || month > time.December || year <= 0 {
		return nil, domain.ErrInvalidPeriod
	}

	records, err := s.loadPeriod(ctx, customerID, month, year)
	if err != nil {
		return nil, err
	}

	return BuildMonth(records, month, year), nil
}

func (s *Service) Attendance(ctx context.Context, customerID snowflake.ID, month time.Month, year int, asOf time.Time) (domain.AttendanceSummary, error) {
	slots, err := s.ReconstructMonth(ctx, customerID, month, year)
	if err != nil {
		return domain.AttendanceSummary{}, err
	}

	return Summarize(slots, asOfDay(month, year, asOf)), nil
}

func (s *Service) loadPeriod(ctx context.Context, customerID snowflake.ID, month time.Month, year int) ([]domain.DeliveryRecord, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, month, domain.DaysInMonth(month, year), 0, 0, 0, 0, time.UTC)

	records, err := s.repo.ListPeriod(ctx, s.db, customerID, from, to)
	if err != nil {
		// Reconstruction never substitutes defaults for unreadable data.
		return nil, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}
	return records, nil
}

// asOfDay maps an as-of instant onto a day count within the period: zero for
// periods not yet begun, the full day count for elapsed periods, the day of
// month for the period in progress.
func asOfDay(month time.Month, year int, asOf time.Time) int {
	asOf = asOf.UTC()
	switch {
	case asOf.Year() == year && asOf.Month() == month:
		return asOf.Day()
	case asOf.Before(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)):
		return 0
	default:
		return domain.DaysInMonth(month, year)
	}
}
