package audit

import (
	"github.com/repwell/repwell/internal/audit/repository"
	"github.com/repwell/repwell/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
