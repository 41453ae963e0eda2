package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/milkroute/ledger/internal/billing/domain"
	billingrepo "github.com/milkroute/ledger/internal/billing/repository"
	"github.com/milkroute/ledger/internal/changefeed"
	"github.com/milkroute/ledger/internal/customer/domain"
	"github.com/milkroute/ledger/internal/customer/repository"
	deliverydomain "github.com/milkroute/ledger/internal/delivery/domain"
	deliveryrepo "github.com/milkroute/ledger/internal/delivery/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newCustomerFixture(t *testing.T, dsn string) (domain.Service, *gorm.DB, *changefeed.Hub) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Customer{},
		&deliverydomain.DeliveryRecord{},
		&billingdomain.PaymentLedgerEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	hub := changefeed.NewHub()
	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Repo:         repository.Provide(),
		DeliveryRepo: deliveryrepo.Provide(),
		BillingRepo:  billingrepo.Provide(),
		Feed:         hub,
	})
	return svc, db, hub
}

func TestCreateCustomer(t *testing.T) {
	svc, db, hub := newCustomerFixture(t, "file:customer_create?mode=memory&cache=shared")
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:            "  Asha Dairy Stop  ",
		Address:         "12 Lake Road",
		Phone:           "9812345678",
		DefaultQuantity: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.NotZero(t, customer.ID)
	assert.Equal(t, "Asha Dairy Stop", customer.Name)

	var stored domain.Customer
	require.NoError(t, db.Where("id = ?", customer.ID).First(&stored).Error)
	assert.Equal(t, "12 Lake Road", stored.Address)
	assert.True(t, stored.DefaultQuantity.Equal(decimal.NewFromInt(2)))

	select {
	case event := <-sub.Events():
		assert.Equal(t, changefeed.OpInsert, event.Op)
		assert.Equal(t, changefeed.TableCustomer, event.Table)
		assert.Equal(t, customer.ID.String(), event.Key)
	case <-time.After(time.Second):
		t.Fatal("no change notification received")
	}
}

func TestCreateCustomer_Validation(t *testing.T) {
	svc, _, _ := newCustomerFixture(t, "file:customer_valid?mode=memory&cache=shared")
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{Address: "12 Lake Road"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "Asha"})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{
		Name:            "Asha",
		Address:         "12 Lake Road",
		DefaultQuantity: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestUpdateCustomer(t *testing.T) {
	svc, _, _ := newCustomerFixture(t, "file:customer_update?mode=memory&cache=shared")
	ctx := context.Background()

	_, err := svc.Update(ctx, domain.UpdateCustomerRequest{
		ID: 12345, Name: "Asha", Address: "12 Lake Road",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:            "Asha",
		Address:         "12 Lake Road",
		DefaultQuantity: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, domain.UpdateCustomerRequest{
		ID:              customer.ID,
		Name:            "Asha",
		Address:         "15 Hill Street",
		DefaultQuantity: decimal.NewFromFloat(1.5),
	})
	require.NoError(t, err)
	assert.Equal(t, "15 Hill Street", updated.Address)
	assert.True(t, updated.DefaultQuantity.Equal(decimal.NewFromFloat(1.5)))

	fetched, err := svc.GetByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "15 Hill Street", fetched.Address)
}

func TestListCustomers_CursorPaging(t *testing.T) {
	svc, _, _ := newCustomerFixture(t, "file:customer_list?mode=memory&cache=shared")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{
			Name:            "Customer",
			Address:         "12 Lake Road",
			DefaultQuantity: decimal.NewFromInt(1),
		})
		require.NoError(t, err)
	}

	var seen []snowflake.ID
	token := ""
	for {
		resp, err := svc.List(ctx, domain.ListCustomerRequest{PageToken: token, PageSize: 2})
		require.NoError(t, err)
		for _, customer := range resp.Customers {
			seen = append(seen, customer.ID)
		}
		if !resp.HasMore {
			break
		}
		token = resp.NextPageToken
	}

	assert.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestDeleteCustomer_CascadesLedgerRows(t *testing.T) {
	svc, db, hub := newCustomerFixture(t, "file:customer_delete?mode=memory&cache=shared")
	ctx := context.Background()

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:            "Asha",
		Address:         "12 Lake Road",
		DefaultQuantity: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	keep, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:            "Bhola",
		Address:         "8 Mill Lane",
		DefaultQuantity: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	for _, id := range []snowflake.ID{customer.ID, keep.ID} {
		require.NoError(t, db.Create(&deliverydomain.DeliveryRecord{
			CustomerID:   id,
			DeliveryDate: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
			Status:       deliverydomain.StatusDelivered,
			Quantity:     decimal.NewFromInt(2),
			CreatedAt:    time.Now().UTC(),
		}).Error)
		require.NoError(t, db.Create(&billingdomain.PaymentLedgerEntry{
			CustomerID: id,
			Month:      6,
			Year:       2025,
			AmountDue:  decimal.NewFromInt(100),
			AmountPaid: decimal.Zero,
			Currency:   "INR",
			CreatedAt:  time.Now().UTC(),
			UpdatedAt:  time.Now().UTC(),
		}).Error)
	}

	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, svc.Delete(ctx, customer.ID))

	_, err = svc.GetByID(ctx, customer.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var deliveries, payments int64
	require.NoError(t, db.Model(&deliverydomain.DeliveryRecord{}).
		Where("customer_id = ?", customer.ID).Count(&deliveries).Error)
	require.NoError(t, db.Model(&billingdomain.PaymentLedgerEntry{}).
		Where("customer_id = ?", customer.ID).Count(&payments).Error)
	assert.Zero(t, deliveries)
	assert.Zero(t, payments)

	// The other customer's rows survive.
	require.NoError(t, db.Model(&deliverydomain.DeliveryRecord{}).
		Where("customer_id = ?", keep.ID).Count(&deliveries).Error)
	assert.Equal(t, int64(1), deliveries)

	select {
	case event := <-sub.Events():
		assert.Equal(t, changefeed.OpDelete, event.Op)
		assert.Equal(t, changefeed.TableCustomer, event.Table)
		assert.Equal(t, customer.ID.String(), event.Key)
	case <-time.After(time.Second):
		t.Fatal("no delete notification received")
	}

	// A single customer event is enough; no per-row delete notifications.
	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected extra notification: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeleteCustomer_NotFound(t *testing.T) {
	svc, _, _ := newCustomerFixture(t, "file:customer_delete_missing?mode=memory&cache=shared")
	assert.ErrorIs(t, svc.Delete(context.Background(), 999), domain.ErrNotFound)
}
