package httpmiddleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc picks the bucket for a request. Defaults to ClientKey.
	KeyFunc func(*gin.Context) string
}

// ClientKey buckets requests by device id when present and by client IP
// otherwise, so shoppers behind one NAT do not share a budget.
func ClientKey(c *gin.Context) string {
	if id := c.GetHeader("X-Device-ID"); id != "" {
		return "device:" + id
	}
	return "ip:" + c.ClientIP()
}

// bucket counts requests in the current and the previous fixed window. The
// previous count is weighted by its overlap with the sliding window.
type bucket struct {
	prev      float64
	curr      float64
	currStart time.Time
}

type limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{
		max:     cfg.Max,
		window:  cfg.Window,
		buckets: make(map[string]*bucket),
	}
}

// take consumes one request from key's budget.
func (l *limiter) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, found := l.buckets[key]
	if !found {
		b = &bucket{currStart: now.Truncate(l.window)}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.currStart); elapsed >= l.window {
		if elapsed >= 2*l.window {
			b.prev = 0
		} else {
			b.prev = b.curr
		}
		b.curr = 0
		b.currStart = now.Truncate(l.window)
	}

	overlap := 1 - now.Sub(b.currStart).Seconds()/l.window.Seconds()
	used := b.prev*math.Max(overlap, 0) + b.curr
	resetAt = b.currStart.Add(l.window)
	if used >= float64(l.max) {
		return 0, resetAt, false
	}

	b.curr++
	return max(int(float64(l.max)-used-1), 0), resetAt, true
}

func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.currStart) >= 2*l.window {
			delete(l.buckets, key)
		}
	}
}

// RateLimit rejects requests over budget with 429 and reports the budget in
// X-RateLimit-* headers. Idle buckets are evicted until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientKey
	}
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.evict(now)
			}
		}
	}()

	return func(c *gin.Context) {
		remaining, resetAt, ok := l.take(cfg.KeyFunc(c), time.Now())

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if !ok {
			wait := max(time.Until(resetAt), 0)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
