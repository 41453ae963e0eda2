package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/milkroute/ledger/internal/billing/domain"
	"github.com/milkroute/ledger/internal/clock"
	customerdomain "github.com/milkroute/ledger/internal/customer/domain"
	"github.com/milkroute/ledger/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	BillingSvc   billingdomain.Service
	CustomerRepo customerdomain.Repository
	Locker       *Locker            `optional:"true"`
	Metrics      *telemetry.Metrics `optional:"true"`
	Config       Config             `optional:"true"`
}

// Reconciler periodically backfills payment-ledger entries for the most
// recently elapsed month. Runs are idempotent: existing entries are skipped
// by the store-level conditional insert.
type Reconciler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	billingSvc   billingdomain.Service
	customerRepo customerdomain.Repository
	locker       *Locker
	metrics      *telemetry.Metrics
}

func New(p Params) *Reconciler {
	return &Reconciler{
		db:           p.DB,
		log:          p.Log.Named("reconciler"),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		billingSvc:   p.BillingSvc,
		customerRepo: p.CustomerRepo,
		locker:       p.Locker,
		metrics:      p.Metrics,
	}
}

// TargetPeriod returns the month to reconcile as of now: the previous
// calendar month, since a bill is cut only after its period has elapsed.
func TargetPeriod(now time.Time) (month, year int) {
	now = now.UTC()
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return int(prev.Month()), prev.Year()
}

func (r *Reconciler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()

	r.runOnceLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnceLogged(ctx)
		}
	}
}

func (r *Reconciler) runOnceLogged(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("reconciliation run failed", zap.Error(err))
	}
}

// RunOnce reconciles the target period across all customers, paging by the
// configured batch size. Per-customer failures are reported and counted but
// do not stop the pass.
func (r *Reconciler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, r.cfg.JobTimeout)
	defer cancel()

	month, year := TargetPeriod(r.clock.Now())
	lockKey := fmt.Sprintf("reconciler:run:%04d-%02d", year, month)

	token, acquired, err := r.locker.TryLock(ctx, lockKey, r.cfg.LockTTL)
	if err != nil {
		r.observeRun("lock_error", 0)
		return err
	}
	if !acquired {
		r.log.Debug("reconciliation already running elsewhere, skipping",
			zap.String("lock_key", lockKey),
		)
		r.observeRun("skipped", 0)
		return nil
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			r.log.Warn("failed to release reconciliation lock", zap.Error(err))
		}
	}()

	start := r.clock.Now()
	created, failed := 0, 0

	var afterID snowflake.ID
	for {
		customers, err := r.customerRepo.ListAfter(ctx, r.db, afterID, r.cfg.BatchSize)
		if err != nil {
			r.observeRun("error", created)
			return err
		}
		if len(customers) == 0 {
			break
		}

		ids := make([]snowflake.ID, 0, len(customers))
		for _, customer := range customers {
			ids = append(ids, customer.ID)
		}

		outcomes := r.billingSvc.EnsurePaymentEntriesForAll(ctx, ids, month, year)
		for _, outcome := range outcomes {
			switch {
			case outcome.Err != nil:
				failed++
				r.log.Warn("reconciliation failed for customer",
					zap.String("customer_id", outcome.CustomerID.String()),
					zap.Error(outcome.Err),
				)
			case outcome.Created:
				created++
			}
		}

		afterID = customers[len(customers)-1].ID
		if len(customers) < r.cfg.BatchSize {
			break
		}
	}

	status := "ok"
	if failed > 0 {
		status = "partial"
	}
	r.observeRun(status, created)
	if r.metrics != nil {
		r.metrics.ObserveReconcileDuration(r.clock.Now().Sub(start))
	}

	r.log.Info("reconciliation run complete",
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int("created", created),
		zap.Int("failed", failed),
	)
	return nil
}

func (r *Reconciler) observeRun(status string, created int) {
	if r.metrics == nil {
		return
	}
	r.metrics.IncReconcileRun(status)
	if created > 0 {
		r.metrics.AddReconcileEntries(created)
	}
}
