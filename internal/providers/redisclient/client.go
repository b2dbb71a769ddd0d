package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seqdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.redis",
	fx.Provide(New),
)

// New connects to redis when REDIS_ADDR is set. A nil client is returned
// otherwise and consumers fall back to their in-process implementations.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	log = log.Named("providers.redis")
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, using in-process cache and rate limiter")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if cfg.Telemetry.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			log.Error("instrument redis tracing", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}
