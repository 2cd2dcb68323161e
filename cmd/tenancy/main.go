package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	"github.com/smallbiznis/tenancy/internal/directory"
	"github.com/smallbiznis/tenancy/internal/invoice"
	"github.com/smallbiznis/tenancy/internal/migration"
	"github.com/smallbiznis/tenancy/internal/notification"
	"github.com/smallbiznis/tenancy/internal/observability"
	"github.com/smallbiznis/tenancy/internal/payment"
	"github.com/smallbiznis/tenancy/internal/paymentintent"
	"github.com/smallbiznis/tenancy/internal/scheduler"
	"github.com/smallbiznis/tenancy/internal/server"
	"github.com/smallbiznis/tenancy/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		directory.Module,
		invoice.Module,
		payment.Module,
		paymentintent.Module,
		notification.Module,
		scheduler.Module,

		server.Module,
	)

	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
