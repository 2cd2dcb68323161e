package directory

import (
	"github.com/smallbiznis/tenancy/internal/directory/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("directory",
	fx.Provide(repository.Provide),
)
