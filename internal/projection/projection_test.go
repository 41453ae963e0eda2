package projection

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/milkroute/ledger/internal/billing/domain"
	billingrepo "github.com/milkroute/ledger/internal/billing/repository"
	"github.com/milkroute/ledger/internal/changefeed"
	customerdomain "github.com/milkroute/ledger/internal/customer/domain"
	customerrepo "github.com/milkroute/ledger/internal/customer/repository"
	deliverydomain "github.com/milkroute/ledger/internal/delivery/domain"
	deliveryrepo "github.com/milkroute/ledger/internal/delivery/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newApplierFixture(t *testing.T, dsn string) (*Applier, *Projection, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&deliverydomain.DeliveryRecord{},
		&billingdomain.PaymentLedgerEntry{},
	))

	projection := NewProjection()
	applier := NewApplier(Params{
		DB:           db,
		Log:          zap.NewNop(),
		Feed:         changefeed.NewHub(),
		Projection:   projection,
		CustomerRepo: customerrepo.Provide(),
		DeliveryRepo: deliveryrepo.Provide(),
		BillingRepo:  billingrepo.Provide(),
	})
	return applier, projection, db
}

func testCustomer(id snowflake.ID) customerdomain.Customer {
	return customerdomain.Customer{
		ID:              id,
		Name:            "Asha",
		Address:         "12 Lake Road",
		DefaultQuantity: decimal.NewFromInt(2),
	}
}

func testDelivery(customerID snowflake.ID, day int) deliverydomain.DeliveryRecord {
	return deliverydomain.DeliveryRecord{
		CustomerID:   customerID,
		DeliveryDate: time.Date(2025, time.June, day, 0, 0, 0, 0, time.UTC),
		Status:       deliverydomain.StatusDelivered,
		Quantity:     decimal.NewFromInt(2),
	}
}

func testPayment(customerID snowflake.ID) billingdomain.PaymentLedgerEntry {
	return billingdomain.PaymentLedgerEntry{
		CustomerID: customerID,
		Month:      6,
		Year:       2025,
		AmountDue:  decimal.NewFromInt(5000),
		AmountPaid: decimal.Zero,
		Currency:   "INR",
	}
}

func TestApply_UpsertsByNaturalKey(t *testing.T) {
	applier, projection, _ := newApplierFixture(t, "file:proj_upsert?mode=memory&cache=shared")

	customer := testCustomer(42)
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TableCustomer,
		Key: customer.Key(), Row: customer,
	})

	record := testDelivery(42, 15)
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TableDeliveryRecord,
		Key: record.Key(), Row: record,
	})

	entry := testPayment(42)
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TablePaymentEntry,
		Key: entry.Key(), Row: entry,
	})

	got, ok := projection.Customer(42)
	require.True(t, ok)
	assert.Equal(t, "Asha", got.Name)

	gotRecord, ok := projection.DeliveryRecord(42, record.DeliveryDate)
	require.True(t, ok)
	assert.Equal(t, deliverydomain.StatusDelivered, gotRecord.Status)

	gotEntry, ok := projection.PaymentEntry(42, 6, 2025)
	require.True(t, ok)
	assert.True(t, gotEntry.AmountDue.Equal(decimal.NewFromInt(5000)))
}

func TestApply_Idempotent(t *testing.T) {
	applier, projection, _ := newApplierFixture(t, "file:proj_idem?mode=memory&cache=shared")

	record := testDelivery(42, 15)
	event := changefeed.Event{
		Op: changefeed.OpUpdate, Table: changefeed.TableDeliveryRecord,
		Key: record.Key(), Row: record,
	}

	// Notifications carry no ordering token, so re-delivery must be a no-op.
	applier.Apply(event)
	applier.Apply(event)

	records := projection.DeliveryRecordsFor(42)
	require.Len(t, records, 1)
	assert.Equal(t, record.Key(), records[0].Key())
}

func TestApply_UpdateReplacesRow(t *testing.T) {
	applier, projection, _ := newApplierFixture(t, "file:proj_update?mode=memory&cache=shared")

	record := testDelivery(42, 15)
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TableDeliveryRecord,
		Key: record.Key(), Row: record,
	})

	record.Status = deliverydomain.StatusMissed
	record.Quantity = decimal.Zero
	applier.Apply(changefeed.Event{
		Op: changefeed.OpUpdate, Table: changefeed.TableDeliveryRecord,
		Key: record.Key(), Row: record,
	})

	got, ok := projection.DeliveryRecord(42, record.DeliveryDate)
	require.True(t, ok)
	assert.Equal(t, deliverydomain.StatusMissed, got.Status)
	assert.Len(t, projection.DeliveryRecordsFor(42), 1)
}

func TestApply_CustomerDeleteCascades(t *testing.T) {
	applier, projection, _ := newApplierFixture(t, "file:proj_cascade?mode=memory&cache=shared")

	customer := testCustomer(42)
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TableCustomer,
		Key: customer.Key(), Row: customer,
	})
	record := testDelivery(42, 15)
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TableDeliveryRecord,
		Key: record.Key(), Row: record,
	})
	entry := testPayment(42)
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TablePaymentEntry,
		Key: entry.Key(), Row: entry,
	})

	other := testCustomer(77)
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TableCustomer,
		Key: other.Key(), Row: other,
	})

	applier.Apply(changefeed.Event{
		Op: changefeed.OpDelete, Table: changefeed.TableCustomer,
		Key: customer.Key(), Row: customer,
	})

	_, ok := projection.Customer(42)
	assert.False(t, ok)
	assert.Empty(t, projection.DeliveryRecordsFor(42))
	assert.Empty(t, projection.PaymentEntriesFor(42))

	_, ok = projection.Customer(77)
	assert.True(t, ok)
}

func TestApply_UnknownTableIgnored(t *testing.T) {
	applier, projection, _ := newApplierFixture(t, "file:proj_unknown?mode=memory&cache=shared")

	applier.Apply(changefeed.Event{Op: changefeed.OpInsert, Table: "invoice", Key: "x"})
	assert.Empty(t, projection.Customers())
}

func TestRefresh_ReplacesStateFromStore(t *testing.T) {
	applier, projection, db := newApplierFixture(t, "file:proj_refresh?mode=memory&cache=shared")
	ctx := context.Background()

	// Divergent in-memory state that a refresh must discard.
	applier.Apply(changefeed.Event{
		Op: changefeed.OpInsert, Table: changefeed.TableCustomer,
		Key: "999", Row: testCustomer(999),
	})

	stored := testCustomer(42)
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	require.NoError(t, db.Create(&stored).Error)

	record := testDelivery(42, 15)
	record.CreatedAt = time.Now().UTC()
	require.NoError(t, db.Create(&record).Error)

	entry := testPayment(42)
	entry.CreatedAt = time.Now().UTC()
	entry.UpdatedAt = entry.CreatedAt
	require.NoError(t, db.Create(&entry).Error)

	require.NoError(t, applier.Refresh(ctx))

	_, ok := projection.Customer(999)
	assert.False(t, ok)

	customers := projection.Customers()
	require.Len(t, customers, 1)
	assert.Equal(t, snowflake.ID(42), customers[0].ID)
	require.Len(t, projection.DeliveryRecordsFor(42), 1)
	require.Len(t, projection.PaymentEntriesFor(42), 1)
}

func TestRun_AppliesPublishedEvents(t *testing.T) {
	hub := changefeed.NewHub()
	db, err := gorm.Open(sqlite.Open("file:proj_run?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&deliverydomain.DeliveryRecord{},
		&billingdomain.PaymentLedgerEntry{},
	))

	projection := NewProjection()
	applier := NewApplier(Params{
		DB:           db,
		Log:          zap.NewNop(),
		Feed:         hub,
		Projection:   projection,
		CustomerRepo: customerrepo.Provide(),
		DeliveryRepo: deliveryrepo.Provide(),
		BillingRepo:  billingrepo.Provide(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- applier.Run(ctx) }()

	customer := testCustomer(42)
	require.Eventually(t, func() bool {
		hub.Publish(ctx, changefeed.Event{
			Op: changefeed.OpInsert, Table: changefeed.TableCustomer,
			Key: customer.Key(), Row: customer,
		})
		_, ok := projection.Customer(42)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("applier did not stop on context cancel")
	}
}
