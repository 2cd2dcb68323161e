package invoice

import (
	"github.com/smallbiznis/tenancy/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(service.NewService),
)
