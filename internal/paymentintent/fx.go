package paymentintent

import (
	"github.com/smallbiznis/tenancy/internal/paymentintent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("paymentintent",
	fx.Provide(service.NewService),
)
