package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyKey      = errors.New("rate_limit_key_empty")
	ErrInvalidLimits = errors.New("rate_limit_invalid_limits")
)

// Limiter decides whether one more request for key fits in its bucket.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limits is a token bucket refilled at PerMinute tokens a minute holding at
// most Burst tokens.
type Limits struct {
	PerMinute int
	Burst     int
}

func (l Limits) valid() bool {
	return l.PerMinute > 0 && l.Burst > 0
}

func (l Limits) ratePerSecond() float64 {
	return float64(l.PerMinute) / 60
}

// retryAfter is the time needed to refill from tokens up to one whole token.
func (l Limits) retryAfter(tokens float64) time.Duration {
	needed := 1 - tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / l.ratePerSecond() * float64(time.Second))
}
