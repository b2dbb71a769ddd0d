package ratelimit

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seqdesk/internal/clock"
)

// The caller passes the current time so every replica and the tests agree
// on one clock. Tokens are stored as a string to keep fractions.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

// TokenBucket keeps buckets in redis so limits hold across replicas.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
	clock  clock.Clock
	limits Limits
	prefix string
}

func NewTokenBucket(client *redis.Client, clk clock.Clock, limits Limits) *TokenBucket {
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		clock:  clk,
		limits: limits,
		prefix: "seqdesk:ratelimit:",
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}
	if !t.limits.valid() {
		return Result{}, ErrInvalidLimits
	}

	res, err := t.script.Run(ctx, t.client, []string{t.prefix + key},
		t.limits.ratePerSecond(),
		t.limits.Burst,
		bucketTTL(t.limits).Milliseconds(),
		t.clock.Now().UnixMilli(),
	).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 2 {
		return Result{}, redis.Nil
	}

	allowed, _ := res[0].(int64)
	tokens := parseTokens(res[1])
	result := Result{
		Allowed:   allowed == 1,
		Limit:     t.limits.Burst,
		Remaining: int(math.Floor(tokens)),
	}
	if !result.Allowed {
		result.RetryAfter = t.limits.retryAfter(tokens)
	}
	return result, nil
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(l Limits) time.Duration {
	seconds := math.Ceil(float64(l.Burst) / l.ratePerSecond() * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func parseTokens(v any) float64 {
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return f
	case int64:
		return float64(val)
	default:
		return 0
	}
}
