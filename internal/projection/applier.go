package projection

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/milkroute/ledger/internal/billing/domain"
	"github.com/milkroute/ledger/internal/changefeed"
	customerdomain "github.com/milkroute/ledger/internal/customer/domain"
	deliverydomain "github.com/milkroute/ledger/internal/delivery/domain"
	"github.com/milkroute/ledger/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Feed         changefeed.Feed
	Projection   *Projection
	CustomerRepo customerdomain.Repository
	DeliveryRepo deliverydomain.Repository
	BillingRepo  billingdomain.Repository
	Metrics      *telemetry.Metrics `optional:"true"`
}

// Applier consumes the changefeed and keeps the Projection consistent with
// the store. Notifications carry no ordering token, so every handler is
// idempotent: applying the same event twice leaves the projection unchanged.
type Applier struct {
	db           *gorm.DB
	log          *zap.Logger
	feed         changefeed.Feed
	projection   *Projection
	customerRepo customerdomain.Repository
	deliveryRepo deliverydomain.Repository
	billingRepo  billingdomain.Repository
	metrics      *telemetry.Metrics

	handlers map[changefeed.Table]func(changefeed.Event)
}

func NewApplier(p Params) *Applier {
	a := &Applier{
		db:           p.DB,
		log:          p.Log.Named("projection.applier"),
		feed:         p.Feed,
		projection:   p.Projection,
		customerRepo: p.CustomerRepo,
		deliveryRepo: p.DeliveryRepo,
		billingRepo:  p.BillingRepo,
		metrics:      p.Metrics,
	}
	a.handlers = map[changefeed.Table]func(changefeed.Event){
		changefeed.TableCustomer:       a.applyCustomer,
		changefeed.TableDeliveryRecord: a.applyDelivery,
		changefeed.TablePaymentEntry:   a.applyPayment,
	}
	return a
}

// Run subscribes, loads the initial state, and applies notifications one at
// a time in arrival order until ctx is done. If the subscription is dropped
// (slow consumer), it resubscribes and refreshes.
func (a *Applier) Run(ctx context.Context) error {
	for {
		sub, err := a.feed.Subscribe(ctx)
		if err != nil {
			return err
		}

		if err := a.Refresh(ctx); err != nil {
			sub.Close()
			return err
		}

		closed := a.consume(ctx, sub)
		sub.Close()
		if !closed {
			return ctx.Err()
		}
		a.log.Warn("changefeed subscription dropped, refreshing")
	}
}

// consume reports true when the subscription channel closed underneath us.
func (a *Applier) consume(ctx context.Context, sub *changefeed.Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-sub.Events():
			if !ok {
				return true
			}
			a.Apply(event)
		}
	}
}

// Apply dispatches one notification through the table-keyed handler map.
func (a *Applier) Apply(event changefeed.Event) {
	handler, ok := a.handlers[event.Table]
	if !ok {
		a.log.Warn("notification for unknown table ignored",
			zap.String("table", string(event.Table)),
		)
		return
	}
	handler(event)
	if a.metrics != nil {
		a.metrics.IncProjectionEvent(string(event.Table), string(event.Op))
	}
}

// Refresh re-reads every table and swaps the projection state atomically;
// the recovery path for missed notifications.
func (a *Applier) Refresh(ctx context.Context) error {
	customerRows, err := a.customerRepo.ListAfter(ctx, a.db, 0, -1)
	if err != nil {
		if a.metrics != nil {
			a.metrics.IncProjectionRefresh("error")
		}
		return err
	}
	records, err := a.deliveryRepo.ListAll(ctx, a.db)
	if err != nil {
		if a.metrics != nil {
			a.metrics.IncProjectionRefresh("error")
		}
		return err
	}
	entries, err := a.billingRepo.ListAll(ctx, a.db)
	if err != nil {
		if a.metrics != nil {
			a.metrics.IncProjectionRefresh("error")
		}
		return err
	}

	a.projection.replaceAll(customerRows, records, entries)
	if a.metrics != nil {
		a.metrics.IncProjectionRefresh("ok")
	}
	a.log.Info("projection refreshed",
		zap.Int("customers", len(customerRows)),
		zap.Int("delivery_records", len(records)),
		zap.Int("payment_entries", len(entries)),
	)
	return nil
}

func (a *Applier) applyCustomer(event changefeed.Event) {
	switch event.Op {
	case changefeed.OpInsert, changefeed.OpUpdate:
		if customer, ok := customerRow(event.Row); ok {
			a.projection.upsertCustomer(customer)
		}
	case changefeed.OpDelete:
		id := customerIDFromKey(event.Key)
		if customer, ok := customerRow(event.Row); ok {
			id = customer.ID
		}
		if id != 0 {
			a.projection.deleteCustomer(id)
		}
	}
}

func (a *Applier) applyDelivery(event changefeed.Event) {
	switch event.Op {
	case changefeed.OpInsert, changefeed.OpUpdate:
		if record, ok := deliveryRow(event.Row); ok {
			a.projection.upsertDelivery(record)
		}
	case changefeed.OpDelete:
		customerID, rest := splitKey(event.Key)
		if customerID != 0 && rest != "" {
			a.projection.deleteDelivery(customerID, rest)
		}
	}
}

func (a *Applier) applyPayment(event changefeed.Event) {
	switch event.Op {
	case changefeed.OpInsert, changefeed.OpUpdate:
		if entry, ok := paymentRow(event.Row); ok {
			a.projection.upsertPayment(entry)
		}
	case changefeed.OpDelete:
		customerID, _ := splitKey(event.Key)
		if customerID != 0 {
			a.projection.deletePayment(customerID, event.Key)
		}
	}
}

func customerRow(row any) (customerdomain.Customer, bool) {
	switch v := row.(type) {
	case customerdomain.Customer:
		return v, true
	case *customerdomain.Customer:
		if v != nil {
			return *v, true
		}
	}
	return customerdomain.Customer{}, false
}

func deliveryRow(row any) (deliverydomain.DeliveryRecord, bool) {
	switch v := row.(type) {
	case deliverydomain.DeliveryRecord:
		return v, true
	case *deliverydomain.DeliveryRecord:
		if v != nil {
			return *v, true
		}
	}
	return deliverydomain.DeliveryRecord{}, false
}

func paymentRow(row any) (billingdomain.PaymentLedgerEntry, bool) {
	switch v := row.(type) {
	case billingdomain.PaymentLedgerEntry:
		return v, true
	case *billingdomain.PaymentLedgerEntry:
		if v != nil {
			return *v, true
		}
	}
	return billingdomain.PaymentLedgerEntry{}, false
}

func customerIDFromKey(key string) snowflake.ID {
	id, err := snowflake.ParseString(key)
	if err != nil {
		return 0
	}
	return id
}

// splitKey splits a composite "<customer_id>:<suffix>" changefeed key.
func splitKey(key string) (snowflake.ID, string) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return 0, ""
	}
	id, err := snowflake.ParseString(parts[0])
	if err != nil {
		return 0, ""
	}
	return id, parts[1]
}
