package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key. Implementations must be safe for
// concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	// Scope prefixes every key so several policies can share one Limiter
	// backend, e.g. "api" and "login".
	Scope string
	// Limiter does the counting. Required.
	Limiter Limiter
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests, e.g. health probes.
	Skip func(*http.Request) bool
}

// RateLimit rejects requests over the limiter's budget with 429 and a JSON
// body. Allowed responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. A failing limiter lets the request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			key := cfg.KeyFunc(r)
			if cfg.Scope != "" {
				key = cfg.Scope + ":" + key
			}

			d, err := cfg.Limiter.Allow(r.Context(), key, time.Now())
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable",
					zap.String("scope", cfg.Scope),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfter := max(time.Until(d.ResetAt), 0)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// windowCounts tracks request counts across two adjacent windows.
type windowCounts struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// SlidingWindow is an in-process Limiter. The previous window's count is
// weighted by how much of it still overlaps the sliding window. Counts are
// per replica.
type SlidingWindow struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*windowCounts
}

// NewSlidingWindow allows max requests per key in any window-long span.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		max:     max,
		window:  window,
		entries: make(map[string]*windowCounts),
	}
}

// Allow implements Limiter. It never fails.
func (sw *SlidingWindow) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	e, ok := sw.entries[key]
	if !ok {
		e = &windowCounts{currStart: now}
		sw.entries[key] = e
	}

	if now.Sub(e.currStart) >= sw.window {
		e.prevCount = e.currCount
		e.prevStart = e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(sw.window)
		if now.Sub(e.prevStart) >= 2*sw.window {
			e.prevCount = 0
		}
	}

	overlap := max(1.0-now.Sub(e.currStart).Seconds()/sw.window.Seconds(), 0)
	effective := e.prevCount*overlap + e.currCount
	d := Decision{Limit: sw.max, ResetAt: e.currStart.Add(sw.window)}

	if effective >= float64(sw.max) {
		return d, nil
	}

	e.currCount++
	d.Allowed = true
	d.Remaining = max(int(float64(sw.max)-effective-1), 0)
	return d, nil
}

// Len reports the number of tracked keys.
func (sw *SlidingWindow) Len() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.entries)
}

// Evict drops keys whose windows have fully expired at now.
func (sw *SlidingWindow) Evict(now time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for key, e := range sw.entries {
		if now.Sub(e.currStart) >= 2*sw.window {
			delete(sw.entries, key)
		}
	}
}

// StartEviction runs Evict every two windows until ctx is cancelled.
func (sw *SlidingWindow) StartEviction(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * sw.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				sw.Evict(now)
			}
		}
	}()
}
