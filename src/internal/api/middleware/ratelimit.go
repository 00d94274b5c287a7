package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/logging"
	"github.com/casapps/casrecipes/src/internal/metrics"
)

// visitor idles out after this long without a request
const visitorIdleTimeout = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewIPRateLimiter creates a limiter allowing rps requests per second per IP
// with the given burst
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether a request from ip may proceed
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets visitors idle for longer than the timeout
func (l *IPRateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	cutoff := l.now().Add(-visitorIdleTimeout)
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			removed++
		}
	}
	return removed
}

// RateLimit returns a per-IP rate limiting middleware. It is a no-op when
// ratelimit.enabled is false.
func RateLimit(cfg *viper.Viper) echo.MiddlewareFunc {
	if !cfg.GetBool("ratelimit.enabled") {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return RateLimitWith(NewIPRateLimiter(cfg.GetFloat64("ratelimit.requests_per_second"), cfg.GetInt("ratelimit.burst")))
}

// RateLimitWith returns a rate limiting middleware backed by limiter
func RateLimitWith(limiter *IPRateLimiter) echo.MiddlewareFunc {
	var requests int
	var mu sync.Mutex

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Sweep idle visitors every few thousand requests instead of
			// running a background goroutine.
			mu.Lock()
			requests++
			sweep := requests%4096 == 0
			mu.Unlock()
			if sweep {
				if n := limiter.Cleanup(); n > 0 {
					logging.Debug().Int("removed", n).Msg("rate limiter visitors expired")
				}
			}

			if !limiter.Allow(c.RealIP()) {
				metrics.RateLimited.Inc()
				return errors.RateLimitError()
			}
			return next(c)
		}
	}
}
