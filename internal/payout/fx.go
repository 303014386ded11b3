package payout

import (
	"github.com/repwell/repwell/internal/payout/repository"
	"github.com/repwell/repwell/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
