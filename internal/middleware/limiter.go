package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"storefront-cart/internal/logger"
	"storefront-cart/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultLimit = rate.Limit(10)
	defaultBurst = 20

	cleanupInterval = time.Minute
	visitorIdleTTL  = 3 * time.Minute
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles cart traffic per session, falling back to the client IP
// for requests that carry no session yet.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = defaultLimit
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

// getVisitor retrieves or creates the limiter for key.
func (l *RateLimiter) getVisitor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(l.limit, l.burst)
		l.visitors[key] = &visitor{limiter, l.now()}
		return limiter
	}

	v.lastSeen = l.now()
	return v.limiter
}

// Run evicts idle visitors until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *RateLimiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > visitorIdleTTL {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the budget with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := identity(r)

		if !l.getVisitor(key).Allow() {
			logger.FromCtx(r.Context()).Warn("rate limit exceeded",
				zap.String("layer", "middleware"),
				zap.String("key", key),
			)
			utils.WriteJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// identity keys on the session the client presented. Requests without one
// would get a fresh session each time, so they are keyed by IP instead.
func identity(r *http.Request) string {
	if sessionID := presentedSession(r); sessionID != "" {
		return "session:" + sessionID
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
