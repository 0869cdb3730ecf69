package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/tbrag-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained chat/upload rate per client (req/s).
	defaultRateLimit = 10
	// defaultRateBurst is the instantaneous burst per client.
	defaultRateBurst = 20
	// bucketIdleTTL is how long an untouched client bucket is kept.
	bucketIdleTTL = 5 * time.Minute
	// evictInterval is how often idle buckets are swept.
	evictInterval = time.Minute
)

// clientBucket is one client's token bucket.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles chat and upload requests per client address.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket

	rps   rate.Limit
	burst int
	// retryAfter is the Retry-After value sent with 429s, in whole seconds.
	retryAfter string
	// trustProxy keys buckets on the first X-Forwarded-For hop.
	trustProxy bool

	log *slog.Logger
}

// newRateLimiter builds a limiter and starts its eviction sweep. Call the
// returned stop function to end the sweep.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	retry := 1
	if rps > 0 && rps < 1 {
		retry = int(math.Ceil(1 / rps))
	}

	rl := &rateLimiter{
		buckets:    make(map[string]*clientBucket),
		rps:        rate.Limit(rps),
		burst:      burst,
		retryAfter: strconv.Itoa(retry),
		log:        log,
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				rl.evictIdle(now)
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// allow takes one token from key's bucket.
func (rl *rateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// evictIdle drops buckets not used within bucketIdleTTL of now.
func (rl *rateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > bucketIdleTTL {
			delete(rl.buckets, key)
		}
	}
}

// size returns the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware rejects over-limit requests with a JSON 429 and Retry-After.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.clientKey(r)
		if !rl.allow(key, time.Now()) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("client", key),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", rl.retryAfter)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller for rate limiting.
func (rl *rateLimiter) clientKey(r *http.Request) string {
	if rl.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	return clientIP(r)
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
