package httpapi

import (
	"sync"

	"golang.org/x/time/rate"
)

// rateLimiterSet lazily builds one token-bucket limiter per caller key,
// mirroring the teacher's infrastructure/middleware/ratelimit.go per-client
// bucket map (SPEC_FULL.md §B).
type rateLimiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newRateLimiterSet(ratePerSecond float64, burst int) *rateLimiterSet {
	if ratePerSecond <= 0 {
		ratePerSecond = 50
	}
	if burst <= 0 {
		burst = 100
	}
	return &rateLimiterSet{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

func (s *rateLimiterSet) allow(key string) bool {
	s.mu.Lock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.r, s.burst)
		s.limiters[key] = l
	}
	s.mu.Unlock()
	return l.Allow()
}
