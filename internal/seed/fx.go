package seed

import (
	"context"

	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"github.com/smallbiznis/seqdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("seed",
	fx.Invoke(registerCatalogSeed),
)

func registerCatalogSeed(lc fx.Lifecycle, cfg config.Config, svc catalogdomain.Service, log *zap.Logger) {
	if !cfg.SeedCatalog {
		return
	}
	log = log.Named("seed")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := EnsureStarterCatalog(ctx, svc, log)
			return err
		},
	})
}
