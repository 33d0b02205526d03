// Package middleware holds the request guards in front of the /api/auth routes.
package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/betforbes/authflow/internal/auth"
	"github.com/betforbes/authflow/internal/logger"
)

// BodyLimit rejects bodies larger than maxBytes with 413 REQUEST_TOO_LARGE.
// A declared Content-Length is checked up front. Undeclared or understated bodies fail while
// the handler decodes them (see handlers.decodeJSONBody).
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				auth.RespondWithError(w, r, auth.NewRequestTooLargeError(
					fmt.Sprintf("Request body exceeds maximum allowed size (%d bytes)", maxBytes)))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// idle client limiters are dropped after this long
const clientIdleTTL = 5 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one token bucket per client address.
type clientLimiters struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(rps, burst int32) *clientLimiters {
	return &clientLimiters{
		rps:     rate.Limit(rps),
		burst:   int(burst),
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (c *clientLimiters) get(client string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) > clientIdleTTL {
		for key, cl := range c.clients {
			if now.Sub(cl.lastSeen) > clientIdleTTL {
				delete(c.clients, key)
			}
		}
		c.lastSweep = now
	}

	cl, ok := c.clients[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(c.rps, c.burst)}
		c.clients[client] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// clientAddress is the request's IP. chi's RealIP middleware has already replaced RemoteAddr
// with X-Real-IP / X-Forwarded-For when present.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit gives every client address its own limiter of requestsPerSecond with the given burst,
// so a flow run hammering the stub does not starve other callers.
// Rate limiting is disabled when requestsPerSecond <= 0.
func RateLimit(requestsPerSecond int32, burst int32) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiters := newClientLimiters(requestsPerSecond, burst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / float64(requestsPerSecond))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientAddress(r)
			if limiters.get(client).Allow() {
				next.ServeHTTP(w, r)
				return
			}

			logger.ContextWithLogAttrs(r.Context(), slog.String("client", client))
			logger.ContextRequestLogger(r.Context()).Warn("rate limit exceeded",
				slog.String("client", client))

			w.Header().Set("Retry-After", retryAfter)
			auth.RespondWithError(w, r, auth.NewRateLimitError("Muitas requisições. Tente novamente mais tarde."))
		})
	}
}
