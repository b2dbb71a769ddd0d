package ratelimit

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Cfg   config.Config
	Clock clock.Clock
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

// Provide returns the shared redis bucket when a client exists and an
// in-process limiter otherwise.
func Provide(p Params) Limiter {
	limits := Limits{PerMinute: p.Cfg.RateLimitPerMinute, Burst: p.Cfg.RateLimitBurst}
	if p.Redis == nil {
		p.Log.Named("ratelimit").Info("using in-process rate limiter",
			zap.Int("per_minute", limits.PerMinute),
			zap.Int("burst", limits.Burst),
		)
		return NewLocal(p.Clock, limits)
	}
	return NewTokenBucket(p.Redis, p.Clock, limits)
}
