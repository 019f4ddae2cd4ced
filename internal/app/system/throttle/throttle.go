// Package throttle limits how often one client may submit the auth forms.
package throttle

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juhiii45/EcoReborn/internal/app/system/network"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds the number of tracked clients. When it is exceeded
// the whole map is dropped and every client starts with a full bucket.
const DefaultMaxKeys = 10000

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	maxKeys  int
}

// PerHour returns a limiter allowing n requests per hour per key, with a
// burst of n.
func PerHour(n int) *Limiter {
	if n <= 0 {
		n = 1
	}
	return New(rate.Every(time.Hour/time.Duration(n)), n)
}

// New returns a limiter with the given refill rate and burst.
func New(limit rate.Limit, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
		maxKeys:  DefaultMaxKeys,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= l.maxKeys {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// retryAfter estimates how long until key earns its next token.
func (l *Limiter) retryAfter(key string) time.Duration {
	r := l.get(key).Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}

// Middleware rejects POSTs from a client whose bucket is empty. Other
// methods pass through untouched. onLimited renders the 429 response; nil
// writes a plain-text one.
func (l *Limiter) Middleware(clientIP func(*http.Request) string, onLimited http.Handler, logger *zap.Logger) func(http.Handler) http.Handler {
	if clientIP == nil {
		clientIP = network.RemoteIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIP(r)
			if l.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("request throttled",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path))

			secs := int(l.retryAfter(ip).Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			if onLimited != nil {
				onLimited.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
