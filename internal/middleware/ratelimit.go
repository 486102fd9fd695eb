package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/elivate/elivate-backend/internal/response"
	"github.com/gin-gonic/gin"
	"k8s.io/utils/clock"
)

// RateLimiter is a token bucket keyed by learner, or by client IP for
// unauthenticated requests.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clock.PassiveClock
	visitors map[string]*visitor
	rate     int           // Tokens per interval
	interval time.Duration // Refill interval
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 240 requests per minute).
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	return newRateLimiter(clock.RealClock{}, rate, interval)
}

func newRateLimiter(clk clock.PassiveClock, rate int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:    clk,
		visitors: make(map[string]*visitor),
		rate:     rate,
		interval: interval,
	}
}

// Middleware returns a Gin middleware that rate-limits requests.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(visitorKey(c)) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{tokens: rl.rate, lastSeen: now}
		rl.visitors[key] = v
	}

	// Refill whole intervals only.
	if refill := int(now.Sub(v.lastSeen)/rl.interval) * rl.rate; refill > 0 {
		v.tokens += refill
		if v.tokens > rl.rate {
			v.tokens = rl.rate
		}
		v.lastSeen = now
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// Sweep drops visitors idle for longer than idle. Run it periodically.
func (rl *RateLimiter) Sweep(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clock.Now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(rl.visitors, key)
		}
	}
}

func visitorKey(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil {
		return "learner:" + claims.LearnerID()
	}
	return "ip:" + c.ClientIP()
}
