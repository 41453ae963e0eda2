package migration

import (
	billingdomain "github.com/milkroute/ledger/internal/billing/domain"
	customerdomain "github.com/milkroute/ledger/internal/customer/domain"
	deliverydomain "github.com/milkroute/ledger/internal/delivery/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// RunMigrations brings the schema up to date from the gorm models. The
// composite primary keys on delivery_records and payment_ledger_entries are
// what make upsert-by-identity work at the store level.
func RunMigrations(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&customerdomain.Customer{},
		&deliverydomain.DeliveryRecord{},
		&billingdomain.PaymentLedgerEntry{},
	)
}

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		return RunMigrations(conn)
	}),
)
