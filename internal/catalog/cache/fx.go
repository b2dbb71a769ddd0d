package cache

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Redis *redis.Client `optional:"true"`
	Log   *zap.Logger
}

// Provide picks the redis cache when a client is available.
func Provide(p Params) domain.Cache {
	if p.Redis == nil {
		return NewNoop()
	}
	return NewRedis(p.Redis, p.Log)
}
