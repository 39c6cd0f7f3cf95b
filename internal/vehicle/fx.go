package vehicle

import (
	"github.com/smallbiznis/autotrade/internal/vehicle/repository"
	"github.com/smallbiznis/autotrade/internal/vehicle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vehicle.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
