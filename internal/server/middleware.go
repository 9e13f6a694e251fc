package server

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fiberqc/internal/logger"
	"fiberqc/internal/response"
)

// ContextKey is the type used for request context keys.
type ContextKey string

const CtxRequestID ContextKey = "requestID"

// RequestIDFrom returns the request id stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(CtxRequestID).(string)
	return id
}

// GzipResponseWriter wraps http.ResponseWriter to support gzip compression.
type GzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w GzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

// GzipMiddleware compresses responses when client supports gzip. WebSocket
// upgrades pass through untouched.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Range") != "" || r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		gzw := GzipResponseWriter{Writer: gz, ResponseWriter: w}
		next.ServeHTTP(gzw, r)
	})
}

// statusRecorder captures the status code for logging. It keeps Hijack
// available for WebSocket upgrades.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// RequestID tags each request with an id, reusing an incoming X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CtxRequestID, id)))
	})
}

// LoggingMiddleware logs request method, path, status and duration.
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).String(),
				"request_id", RequestIDFrom(r.Context()),
			)
		})
	}
}

// CORS sets the cross-origin headers and answers preflight requests.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds security headers to all responses. The CSP allows
// the inline style and print script of the cable report.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		csp := "default-src 'self'; " +
			"script-src 'self' 'unsafe-inline'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"connect-src 'self'"
		w.Header().Set("Content-Security-Policy", csp)
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// Recover turns a panic into the generic 500 response.
func Recover(log *logger.Logger, dev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					err := fmt.Errorf("panic: %v", p)
					log.Error("handler panic", "method", r.Method, "path", r.URL.Path,
						"request_id", RequestIDFrom(r.Context()), "error", err)
					response.Internal(w, err, dev)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// RequireAPIKey rejects mutating /api/ requests whose Bearer token matches
// none of the bcrypt hashes. With no hashes configured every request passes.
func RequireAPIKey(hashes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(hashes) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized", "code": "UNAUTHORIZED"})
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			for _, h := range hashes {
				if bcrypt.CompareHashAndPassword([]byte(h), []byte(token)) == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid API key", "code": "UNAUTHORIZED"})
		})
	}
}

// HashAPIKey returns the bcrypt hash to put in auth.api_key_hashes.
func HashAPIKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("API key must not be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RateLimiter tracks request rates per key.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a new RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
	}
}

// Reset clears all rate limit state (for testing).
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	rl.requests = make(map[string][]time.Time)
	rl.mu.Unlock()
}

func (rl *RateLimiter) cleanupOldRequests(key string, now time.Time, window time.Duration) {
	cutoff := now.Add(-window)

	requests := rl.requests[key]
	validRequests := make([]time.Time, 0, len(requests))
	for _, reqTime := range requests {
		if reqTime.After(cutoff) {
			validRequests = append(validRequests, reqTime)
		}
	}

	if len(validRequests) > 0 {
		rl.requests[key] = validRequests
	} else {
		delete(rl.requests, key)
	}
}

// CheckRateLimit checks if the request should be rate limited.
func (rl *RateLimiter) CheckRateLimit(key string, limit int, window time.Duration) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.cleanupOldRequests(key, now, window)

	requests := rl.requests[key]
	currentCount := len(requests)

	var resetTime time.Time
	if len(requests) > 0 {
		resetTime = requests[0].Add(window)
	} else {
		resetTime = now.Add(window)
	}

	if currentCount >= limit {
		return true, 0, resetTime
	}

	rl.requests[key] = append(requests, now)
	remaining := limit - currentCount - 1

	return false, remaining, resetTime
}

// clientIP is the remote peer's address. X-Real-IP and X-Forwarded-For are
// honored only when the peer is one of the trusted proxies.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	if !isTrusted(host, trusted) {
		return host
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RateLimitMiddleware caps write requests per client IP at perMinute.
// perMinute <= 0 disables it.
func RateLimitMiddleware(rl *RateLimiter, perMinute int, trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			exceeded, remaining, resetTime := rl.CheckRateLimit("write:"+clientIP(r, trusted), perMinute, time.Minute)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", perMinute))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))

			if exceeded {
				retry := int(time.Until(resetTime).Seconds())
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
				response.WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error":      "Rate limit exceeded",
					"code":       "RATE_LIMIT_EXCEEDED",
					"retryAfter": retry,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
