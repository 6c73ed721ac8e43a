package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles room creation and joins per client address and action.
type rateLimiter struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimiter
}

func newRateLimiter(clock clockwork.Clock, perMinute, burst int) *rateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		clock:   clock,
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

// allow reports whether key may proceed, and otherwise how long to wait.
func (l *rateLimiter) allow(key string) (bool, time.Duration) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > limiterIdleTTL {
			delete(l.clients, k)
		}
	}
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (s *Server) enforceRateLimit(c *gin.Context, action string) bool {
	ok, wait := s.limiter.allow(action + "|" + c.ClientIP())
	if ok {
		return true
	}
	seconds := int(wait.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
	return false
}
