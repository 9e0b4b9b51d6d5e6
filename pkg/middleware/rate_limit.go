package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/metrics"
	"golang.org/x/time/rate"
)

// tokenBuckets keeps one token bucket per caller key.
type tokenBuckets struct {
	mu    sync.Mutex
	rps   float64
	burst int
	byKey map[string]*rate.Limiter
}

func (b *tokenBuckets) get(key string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	lim, ok := b.byKey[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(b.rps), b.burst)
		b.byKey[key] = lim
	}
	return lim
}

// RateLimitMiddleware enforces an in-process token bucket per caller. name
// labels the limiter in metrics; every call gets its own buckets so public
// verification routes and the API can be limited separately.
func RateLimitMiddleware(name string, rps float64, burst int) gin.HandlerFunc {
	buckets := &tokenBuckets{rps: rps, burst: burst, byKey: make(map[string]*rate.Limiter)}
	return func(c *gin.Context) {
		if !buckets.get(limiterKey(c)).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues(name).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(name).Inc()
		c.Next()
	}
}
