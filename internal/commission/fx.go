package commission

import (
	"github.com/repwell/repwell/internal/commission/repository"
	"github.com/repwell/repwell/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
