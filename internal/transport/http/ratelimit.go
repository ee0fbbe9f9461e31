package http

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// ipLimiter tracks one token bucket per client IP.
type ipLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newIPLimiter(perSecond float64) *ipLimiter {
	return &ipLimiter{
		limit:   rate.Limit(perSecond),
		burst:   int(perSecond),
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[ip] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

// limitMiddleware rejects requests over the per-IP budget with 429.
func (l *ipLimiter) limitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.allow(ip) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
