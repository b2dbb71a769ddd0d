package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"go.uber.org/zap"
)

const (
	activeKey = "seqdesk:catalog:active"
	activeTTL = 5 * time.Minute
)

type redisCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedis caches the active catalog as one JSON document.
func NewRedis(client *redis.Client, log *zap.Logger) domain.Cache {
	return &redisCache{client: client, log: log.Named("catalog.cache")}
}

func (c *redisCache) GetActive(ctx context.Context) ([]domain.ServiceDefinition, bool) {
	raw, err := c.client.Get(ctx, activeKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("catalog cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var defs []domain.ServiceDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		c.log.Warn("catalog cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return defs, true
}

func (c *redisCache) SetActive(ctx context.Context, defs []domain.ServiceDefinition) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, activeKey, raw, activeTTL).Err(); err != nil {
		c.log.Warn("catalog cache write failed", zap.Error(err))
	}
}

func (c *redisCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, activeKey).Err(); err != nil {
		c.log.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}

type noopCache struct{}

// NewNoop never caches.
func NewNoop() domain.Cache {
	return noopCache{}
}

func (noopCache) GetActive(context.Context) ([]domain.ServiceDefinition, bool) { return nil, false }
func (noopCache) SetActive(context.Context, []domain.ServiceDefinition)       {}
func (noopCache) Invalidate(context.Context)                                  {}
