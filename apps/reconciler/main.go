package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/milkroute/ledger/internal/billing"
	"github.com/milkroute/ledger/internal/changefeed"
	"github.com/milkroute/ledger/internal/clock"
	"github.com/milkroute/ledger/internal/config"
	"github.com/milkroute/ledger/internal/customer"
	"github.com/milkroute/ledger/internal/delivery"
	"github.com/milkroute/ledger/internal/logger"
	"github.com/milkroute/ledger/internal/migration"
	"github.com/milkroute/ledger/internal/reconciler"
	"github.com/milkroute/ledger/pkg/db"
	"github.com/milkroute/ledger/pkg/telemetry"
	"go.uber.org/fx"
)

// Standalone reconciliation worker: no projection, just the billing backfill
// on its interval. Deploy alongside the main process with REDIS_ADDR set so
// runs stay mutually exclusive.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		changefeed.Module,
		telemetry.Module,

		customer.Module,
		delivery.Module,
		billing.Module,

		reconciler.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
