package delivery

import (
	"github.com/milkroute/ledger/internal/delivery/repository"
	"github.com/milkroute/ledger/internal/delivery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("delivery.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
