package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/campusware/campus/pkg/slogx"
)

// RateLimitConfig defines one limiter class's parameters.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the fixed window duration.
	Window time.Duration
	// SkipSuccessful undoes the count once the response status is known to
	// be below 400, so only failures accumulate toward the limit. This is
	// brute-force slowdown, not throughput shaping.
	SkipSuccessful bool
}

// ParseRateLimitFromEnv reads overrides for a limiter class from environment
// variables RATELIMIT_{prefix}_REQUESTS and RATELIMIT_{prefix}_WINDOW_SEC.
// Unset or unparseable values keep the defaults.
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.Max = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	return config
}

// KeyExtractor derives the bucket key for a request (IP address, user ID,
// IP+email, ...).
type KeyExtractor func(*http.Request) string

// ClientIP extracts the client IP address, honouring X-Forwarded-For and
// X-Real-IP for proxied requests.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// IPKeyExtractor keys buckets by client IP alone.
func IPKeyExtractor(r *http.Request) string { return ClientIP(r) }

// IdentityKeyExtractor keys by authenticated subject id, falling back to IP
// for unauthenticated requests.
func IdentityKeyExtractor(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + id.SubjectID
	}
	return ClientIP(r)
}

// FormFieldKeyExtractor extracts a key from a form field. Used to tie login
// limits to the specific credential under attack.
func FormFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err == nil {
			return r.FormValue(fieldName)
		}
		return ""
	}
}

// JSONFieldKeyExtractor extracts a string field from a JSON request body,
// restoring the body afterwards so the handler can still read it. Bodies
// over 64KiB or that aren't JSON objects yield an empty key.
func JSONFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return ""
		}

		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			return ""
		}
		if v, ok := body[fieldName].(string); ok {
			return v
		}
		return ""
	}
}

// CompositeKeyExtractor combines multiple extractors with a separator,
// e.g. "192.168.1.1:alice@example.com".
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

type bucket struct {
	windowStart time.Time
	count       int
}

// rateLimiter holds the fixed-window buckets for one limiter class. Each
// middleware instance owns its own map, so exhausting one class never bleeds
// into another.
type rateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	cfg         RateLimitConfig
	now         func() time.Time
	lastCleanup time.Time
}

type rateDecision struct {
	allowed    bool
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// take performs the atomic increment-and-compare for key. Absent or elapsed
// windows start fresh at count 1.
func (rl *rateLimiter) take(key string) rateDecision {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.cfg.Window {
		b = &bucket{windowStart: now, count: 0}
		rl.buckets[key] = b
	}
	b.count++

	reset := b.windowStart.Add(rl.cfg.Window)
	if b.count > rl.cfg.Max {
		return rateDecision{
			allowed:    false,
			remaining:  0,
			reset:      reset,
			retryAfter: reset.Sub(now),
		}
	}

	rl.maybeCleanup(now)

	return rateDecision{
		allowed:   true,
		remaining: rl.cfg.Max - b.count,
		reset:     reset,
	}
}

// undo reverses one increment for key, if its window is still current.
// Called after a sub-400 response when SkipSuccessful is set.
func (rl *rateLimiter) undo(key string) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.cfg.Window {
		return
	}
	if b.count > 0 {
		b.count--
	}
}

// maybeCleanup drops buckets whose window has long elapsed. Caller holds mu.
func (rl *rateLimiter) maybeCleanup(now time.Time) {
	if now.Sub(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = now

	for key, b := range rl.buckets {
		if now.Sub(b.windowStart) >= rl.cfg.Window {
			delete(rl.buckets, key)
		}
	}
}

// RateLimitMiddleware creates a fixed-window rate limiting middleware. Every
// response carries X-RateLimit-Limit/Remaining/Reset; rejections add a
// Retry-After header and the RATE_LIMIT_EXCEEDED JSON body.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		cfg:     config,
		now:     time.Now,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				// No key means no bucket to count against. Allow, but log.
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			d := rl.take(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))

			if !d.allowed {
				retryAfter := max(int(d.retryAfter.Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, ErrorBody{
					Error:      "Too many requests, please try again later",
					Code:       "RATE_LIMIT_EXCEEDED",
					RetryAfter: retryAfter,
				})
				return
			}

			if !config.SkipSuccessful {
				next.ServeHTTP(w, r)
				return
			}

			// Only failures count: record the status and give the slot back
			// once the handler reports success.
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status < http.StatusBadRequest {
				rl.undo(key)
			}
		})
	}
}

// Convenience constructors for the common limiter shapes.

// RateLimitByIP limits by client IP address only.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor)
}

// RateLimitByIdentity limits by authenticated subject, falling back to IP.
func RateLimitByIdentity(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IdentityKeyExtractor)
}

// RateLimitByIPAndFormField limits by IP + a form field such as the submitted
// email, tying login-attempt limits to the credential being attacked.
func RateLimitByIPAndFormField(config RateLimitConfig, fieldName string) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor("_",
		IPKeyExtractor,
		FormFieldKeyExtractor(fieldName),
	))
}

// RateLimitByIPAndJSONField is the JSON-body variant of the above, for
// endpoints that take their credentials as JSON.
func RateLimitByIPAndJSONField(config RateLimitConfig, fieldName string) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor("_",
		IPKeyExtractor,
		JSONFieldKeyExtractor(fieldName),
	))
}
