package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/audit"
	"github.com/smallbiznis/seqdesk/internal/auth"
	"github.com/smallbiznis/seqdesk/internal/authorization"
	"github.com/smallbiznis/seqdesk/internal/backup"
	"github.com/smallbiznis/seqdesk/internal/catalog"
	"github.com/smallbiznis/seqdesk/internal/chargeslip"
	"github.com/smallbiznis/seqdesk/internal/client"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	"github.com/smallbiznis/seqdesk/internal/inquiry"
	"github.com/smallbiznis/seqdesk/internal/migration"
	"github.com/smallbiznis/seqdesk/internal/observability"
	"github.com/smallbiznis/seqdesk/internal/project"
	"github.com/smallbiznis/seqdesk/internal/providers"
	"github.com/smallbiznis/seqdesk/internal/quotation"
	"github.com/smallbiznis/seqdesk/internal/ratelimit"
	"github.com/smallbiznis/seqdesk/internal/reference"
	"github.com/smallbiznis/seqdesk/internal/render"
	"github.com/smallbiznis/seqdesk/internal/scheduler"
	"github.com/smallbiznis/seqdesk/internal/seed"
	"github.com/smallbiznis/seqdesk/internal/server"
	"github.com/smallbiznis/seqdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		providers.Module,
		migration.Module,

		// Domains
		render.Module,
		reference.Module,
		catalog.Module,
		client.Module,
		project.Module,
		inquiry.Module,
		quotation.Module,
		chargeslip.Module,
		audit.Module,
		auth.Module,
		authorization.Module,
		backup.Module,
		seed.Module,

		// Edges
		ratelimit.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
