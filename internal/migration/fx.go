package migration

import (
	"github.com/smallbiznis/tenancy/internal/config"
	directorydomain "github.com/smallbiznis/tenancy/internal/directory/domain"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	intentdomain "github.com/smallbiznis/tenancy/internal/paymentintent/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		return conn.AutoMigrate(
			&directorydomain.Organization{},
			&directorydomain.Tenant{},
			&directorydomain.Building{},
			&directorydomain.Unit{},
			&directorydomain.Lease{},
			&invoicedomain.Invoice{},
			&invoicedomain.InvoiceItem{},
			&paymentdomain.Payment{},
			&intentdomain.PaymentIntent{},
		)
	}),
)
