package auth

import (
	"context"

	"github.com/smallbiznis/seqdesk/internal/auth/domain"
	"github.com/smallbiznis/seqdesk/internal/auth/repository"
	"github.com/smallbiznis/seqdesk/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Invoke(registerBootstrap),
)

func registerBootstrap(lc fx.Lifecycle, svc domain.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.EnsureBootstrapAdmin(ctx)
		},
	})
}
