package handlers

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/tutorbot/tutorbot/internal/config"
)

// limiterIdleTTL is how long an unused per-user limiter is kept.
const limiterIdleTTL = 30 * time.Minute

// UserLimiter applies a token bucket per Telegram user.
type UserLimiter struct {
	mu       sync.Mutex
	enabled  bool
	limit    rate.Limit
	burst    int
	limiters *cache.Cache
}

// NewUserLimiter builds a limiter from config. A disabled limiter allows everything.
func NewUserLimiter(cfg config.RateLimitConfig) *UserLimiter {
	return &UserLimiter{
		enabled:  cfg.Enabled,
		limit:    rate.Limit(cfg.RequestsPerMinute / 60.0),
		burst:    max(cfg.Burst, 1),
		limiters: cache.New(limiterIdleTTL, limiterIdleTTL),
	}
}

// Allow reports whether userID may make another request now.
func (l *UserLimiter) Allow(userID int64) bool {
	if l == nil || !l.enabled {
		return true
	}

	l.mu.Lock()
	key := strconv.FormatInt(userID, 10)
	var limiter *rate.Limiter
	if v, ok := l.limiters.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
	}
	// Refresh the idle expiration on every request.
	l.limiters.Set(key, limiter, cache.DefaultExpiration)
	l.mu.Unlock()

	return limiter.Allow()
}
