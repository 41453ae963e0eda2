package billing

import (
	"github.com/milkroute/ledger/internal/billing/repository"
	"github.com/milkroute/ledger/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
