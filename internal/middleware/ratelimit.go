package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/quickshare/service/internal/response"
)

// RateLimiter keeps one token bucket per client IP. Idle buckets expire.
type RateLimiter struct {
	limiters *cache.Cache
	rps      rate.Limit
	burst    int
}

// NewRateLimiter allows rps requests per second per IP with the given burst.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache.New(5*time.Minute, 10*time.Minute),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Handler wraps next with rate limiting.
func (m *RateLimiter) Handler(next http.Handler) http.Handler {
	if m.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter(clientIP(r.RemoteAddr)).Allow() {
			response.TooManyRequests(w, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimiter) limiter(ip string) *rate.Limiter {
	if v, found := m.limiters.Get(ip); found {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(m.rps, m.burst)
	// Add fails if another request created the bucket first; use that one.
	if err := m.limiters.Add(ip, l, cache.DefaultExpiration); err != nil {
		if v, found := m.limiters.Get(ip); found {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// clientIP strips the port from RemoteAddr. Behind a trusted proxy chi's
// RealIP middleware has already replaced it with the forwarded address.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
