package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimitClients = 10000
	defaultRateLimitIdleTTL = 15 * time.Minute
)

// RateLimitConfig bounds requests per client IP on one route.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// MaxClients caps tracked IPs; the least recently seen are evicted first.
	MaxClients int
	IdleTTL    time.Duration
}

// clientLimiter hands out one token bucket per client key. Buckets of clients idle
// for longer than IdleTTL are dropped, which resets them to a full burst.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]
	now     func() time.Time
}

func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	size := cfg.MaxClients
	if size <= 0 {
		size = defaultRateLimitClients
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultRateLimitIdleTTL
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	return &clientLimiter{
		limit:   rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
		now:     time.Now,
	}
}

func (c *clientLimiter) bucket(key string) *rate.Limiter {
	if limiter, ok := c.buckets.Get(key); ok {
		return limiter
	}
	limiter := rate.NewLimiter(c.limit, c.burst)
	// Concurrent first requests may both insert; the later bucket wins and the
	// loser's single token is forgiven.
	c.buckets.Add(key, limiter)
	return limiter
}

// admit takes a token for key. When none is available it returns the wait until
// the next one.
func (c *clientLimiter) admit(key string) (bool, time.Duration) {
	now := c.now()
	reservation := c.bucket(key).ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

// RateLimitMiddleware limits one route per client IP. Rejections answer 429 with
// Retry-After and are counted under route.
func RateLimitMiddleware(cfg RateLimitConfig, route string, metrics rateLimitRecorder) func(http.Handler) http.Handler {
	if cfg.RequestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newClientLimiter(cfg)
	detail := fmt.Sprintf("Rate limit exceeded: %d per 1 minute", cfg.RequestsPerMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.admit(rateLimitKey(r))
			if !ok {
				if metrics != nil {
					metrics.IncrementRateLimited(route)
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeDetail(w, http.StatusTooManyRequests, detail)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type rateLimitRecorder interface {
	IncrementRateLimited(route string)
}

func rateLimitKey(r *http.Request) string {
	if ip := clientIP(r); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}
