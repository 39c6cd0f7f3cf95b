package invoice

import (
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/invoice/repository"
	"github.com/smallbiznis/autotrade/internal/invoice/service"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) paymentdomain.StatusRecomputer { return s }),
)
