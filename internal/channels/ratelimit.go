package channels

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedKeys caps the number of tracked rate-limit keys to prevent
// memory exhaustion from attackers rotating source IPs/keys.
const maxTrackedKeys = 4096

// WebhookRateLimiter bounds the number of tracked per-key limiters so
// a key-rotation attacker cannot exhaust memory. Safe for concurrent use.
type WebhookRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perMin   int
}

// NewWebhookRateLimiter creates a bounded rate limiter allowing up to
// perMin requests per minute per key, with a burst of up to perMin
// requests for a fresh key.
func NewWebhookRateLimiter(perMin int) *WebhookRateLimiter {
	if perMin <= 0 {
		perMin = 60
	}
	return &WebhookRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		perMin:   perMin,
	}
}

// Allow returns true if key is within its rate limit, lazily creating
// a limiter for previously unseen keys and evicting arbitrarily when
// the tracked-key cap is reached.
func (r *WebhookRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.limiters[key]
	if !ok {
		if len(r.limiters) >= maxTrackedKeys {
			for k := range r.limiters {
				delete(r.limiters, k)
				break
			}
		}
		lim = rate.NewLimiter(rate.Limit(float64(r.perMin)/60.0), r.perMin)
		r.limiters[key] = lim
	}
	return lim.Allow()
}
