package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisCache_RoundTripKeepsTier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedis(client, zap.NewNop())
	ctx := context.Background()

	_, ok := c.GetActive(ctx)
	assert.False(t, ok)

	def := domain.ServiceDefinition{
		ID:           snowflake.ID(101),
		Code:         "wgs-analysis",
		Name:         "WGS analysis",
		Price:        decimal.NewFromInt(1000),
		PricingModel: pricing.ModelTieredBySamples,
		Active:       true,
	}
	def.SetTier(&pricing.Tier{MinIncluded: 9, AdditionalRate: decimal.NewFromInt(50)})
	c.SetActive(ctx, []domain.ServiceDefinition{def})

	got, ok := c.GetActive(ctx)
	require.True(t, ok)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Tier())
	assert.Equal(t, int64(9), got[0].Tier().MinIncluded)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(1000)))

	c.Invalidate(ctx)
	_, ok = c.GetActive(ctx)
	assert.False(t, ok)
}
