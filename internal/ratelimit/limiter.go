// Package ratelimit enforces a minimum interval between upstream calls per
// provider, so the market-data core never exceeds a provider's documented
// rate budget regardless of how many internal callers want data from it.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token-bucket limiter per provider name.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	configs  map[string]Config
}

// Config is the rate budget for one provider: at most Burst calls may run
// back to back, after which calls are spaced at least 1/RatePerSecond apart.
type Config struct {
	RatePerSecond float64
	Burst         int
}

// New creates a Limiter seeded with per-provider configs. A provider with no
// configured entry falls back to DefaultConfig.
func New(configs map[string]Config) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		configs:  configs,
	}
}

// DefaultConfig is used for providers absent from the configured table: one
// call per second, no burst.
var DefaultConfig = Config{RatePerSecond: 1, Burst: 1}

func (l *Limiter) limiterFor(provider string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[provider]; ok {
		return lim
	}

	cfg, ok := l.configs[provider]
	if !ok {
		cfg = DefaultConfig
	}
	lim := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	l.limiters[provider] = lim
	return lim
}

// Wait blocks until provider's budget allows one more call, or ctx is
// cancelled first.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	return l.limiterFor(provider).Wait(ctx)
}

// Allow reports, without blocking, whether provider has budget for one more
// call right now. Used by callers that want to fail fast instead of queuing.
func (l *Limiter) Allow(provider string) bool {
	return l.limiterFor(provider).Allow()
}
