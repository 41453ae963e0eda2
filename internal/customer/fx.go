package customer

import (
	"github.com/milkroute/ledger/internal/customer/repository"
	"github.com/milkroute/ledger/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
