package rpc

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit bounds mutating calls per client address.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	now      func() time.Time
}

const visitorTTL = 5 * time.Minute

func newRateLimiter(limit RateLimit) *rateLimiter {
	if limit.RequestsPerMinute <= 0 {
		return nil
	}
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	return &rateLimiter{limit: limit, visitors: make(map[string]*rateEntry), now: time.Now}
}

// allow reports whether the client may issue another mutating call. A nil
// limiter allows everything.
func (r *rateLimiter) allow(id string) bool {
	if r == nil {
		return true
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.visitors {
		if now.Sub(entry.lastSeen) > visitorTTL {
			delete(r.visitors, key)
		}
	}
	entry, ok := r.visitors[id]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(r.limit.RequestsPerMinute/60.0), r.limit.Burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// clientSource identifies the caller. chi's RealIP middleware has already
// folded forwarding headers into RemoteAddr.
func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
