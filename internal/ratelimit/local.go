package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/smallbiznis/seqdesk/internal/clock"
	"golang.org/x/time/rate"
)

const localIdleTTL = 30 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local keeps one x/time/rate limiter per key in process memory. It is used
// when redis is not configured.
type Local struct {
	mu      sync.Mutex
	clock   clock.Clock
	limits  Limits
	entries map[string]*localEntry
	swept   time.Time
}

func NewLocal(clk clock.Clock, limits Limits) *Local {
	return &Local{
		clock:   clk,
		limits:  limits,
		entries: map[string]*localEntry{},
	}
}

func (l *Local) Allow(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}
	if !l.limits.valid() {
		return Result{}, ErrInvalidLimits
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(rate.Limit(l.limits.ratePerSecond()), l.limits.Burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	tokens := entry.limiter.TokensAt(now)
	result := Result{
		Allowed:   allowed,
		Limit:     l.limits.Burst,
		Remaining: int(math.Max(0, math.Floor(tokens))),
	}
	if !allowed {
		result.RetryAfter = l.limits.retryAfter(tokens)
	}
	return result, nil
}

func (l *Local) sweep(now time.Time) {
	if now.Sub(l.swept) < time.Minute {
		return
	}
	l.swept = now
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > localIdleTTL {
			delete(l.entries, key)
		}
	}
}
