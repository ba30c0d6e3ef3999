package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// runCost is what POST /v1/run takes from a bucket: one token per model
	// stage (extract, identify, generate). Every other route takes one.
	runCost = 3

	idleClientTTL = 10 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. Buckets of clients idle
// for idleClientTTL are dropped.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*bucket
	lastSweep time.Time
	rps       rate.Limit
	burst     int
	logger    *zap.Logger
	now       func() time.Time
}

func NewRateLimiter(rps float64, burst int, logger *zap.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		logger:  logger,
		now:     time.Now,
	}
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.clients[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// sweep runs at most once per idleClientTTL. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleClientTTL {
		return
	}
	rl.lastSweep = now
	for ip, b := range rl.clients {
		if now.Sub(b.lastSeen) >= idleClientTTL {
			delete(rl.clients, ip)
		}
	}
}

// cost never exceeds the burst, otherwise the request could never pass.
func (rl *RateLimiter) cost(c *gin.Context) int {
	n := 1
	if c.Request.Method == http.MethodPost && c.FullPath() == "/v1/run" {
		n = runCost
	}
	if n > rl.burst {
		n = rl.burst
	}
	return n
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		n := rl.cost(c)

		now := rl.now()
		r := rl.getLimiter(ip).ReserveN(now, n)
		if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
			r.CancelAt(now)

			retryAfter := 1
			if r.OK() {
				retryAfter = int(math.Ceil(delay.Seconds()))
			}
			rl.logger.Warn("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", c.Request.URL.Path),
				zap.Int("cost", n),
				zap.Int("retry_after", retryAfter),
			)

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			p := api.RateLimitError("Too many requests, slow down.", retryAfter)
			c.AbortWithStatusJSON(p.Status, p)
			return
		}

		c.Next()
	}
}
