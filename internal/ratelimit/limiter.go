// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tool names that carry a limit.
const (
	ToolSimulate = "thresholds_simulate"
	ToolRuns     = "thresholds_runs"
	ToolBackup   = "thresholds_backup"
	ToolRestore  = "thresholds_restore"
)

// Limiter hands out one token bucket per key, each with the same rate and
// burst. A fresh bucket starts full. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	nowFunc func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter refilling perSecond tokens per second up
// to burst.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	now := l.nowFunc()
	l.mu.Unlock()

	return b.AllowN(now, 1)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limits. Simulations are CPU
// bound, so they get a much smaller budget than run listing.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		ToolSimulate: NewLimiter(6.0/60.0, 2), // 6/minute, burst 2
		ToolRuns:     NewLimiter(1.0, 10),     // 60/minute, burst 10
		ToolBackup:   NewLimiter(1.0/60.0, 3), // 1/minute, burst 3
		ToolRestore:  NewLimiter(1.0/60.0, 3), // 1/minute, burst 3
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.Allow(toolName) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}
	return nil
}
