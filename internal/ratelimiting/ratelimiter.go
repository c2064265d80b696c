package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Consume(key string) bool
}

type tokenBucketRateLimiter struct {
	limiterByKey    *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond float64
	burstSize       int
}

func (l *tokenBucketRateLimiter) Consume(key string) bool {
	item, _ := l.limiterByKey.GetOrSet(key, rate.NewLimiter(rate.Limit(l.refillPerSecond), l.burstSize))
	return item.Value().Allow()
}

type RefillPerSecond float64
type BurstSize int

// Buckets for keys that have been idle for a while are dropped. Call the
// returned function to stop the cleanup goroutine.
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](30 * time.Minute),
	)
	go limiters.Start()

	return &tokenBucketRateLimiter{
		limiterByKey:    limiters,
		refillPerSecond: float64(refillPerSecond),
		burstSize:       int(burstSize),
	}, limiters.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type requestBasedRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (l *requestBasedRateLimiter) Consume(r *http.Request) bool {
	return l.limiter.Consume(l.keyFunc(r))
}

func (l *requestBasedRateLimiter) KeyFor(r *http.Request) string {
	return l.keyFunc(r)
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &requestBasedRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

// Keyed on the connection's remote address only. X-Forwarded-For is set by the
// client and would let it pick a fresh bucket per request.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// No port
		host = r.RemoteAddr
	}

	return fmt.Sprintf("ip: %s", host)
}
