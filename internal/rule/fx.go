package rule

import (
	"github.com/repwell/repwell/internal/rule/repository"
	"github.com/repwell/repwell/internal/rule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rule.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
