package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"

	zlog "github.com/rs/zerolog/log"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote host. Run chi's RealIP middleware first
// when the app sits behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 Too Many Requests and
// a Retry-After header.
func Middleware(krl *KeyedRateLimiter, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !krl.Allow(k) {
				retry := int(math.Ceil(krl.Reserve(k).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				zlog.Warn().Str("client", k).Str("path", r.URL.Path).Msg("rate limit exceeded")
				http.Error(w, "Too many requests, slow down and try again shortly.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
