package server

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"seaprocure/internal/auth"
	"seaprocure/internal/response"
)

// GzipResponseWriter wraps http.ResponseWriter to support gzip compression.
type GzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w GzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

// GzipMiddleware compresses responses when client supports gzip.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Range") != "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.Header().Del("Content-Length")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		next.ServeHTTP(GzipResponseWriter{Writer: gz, ResponseWriter: w}, r)
	})
}

// statusRecorder captures the status code for the request log. It keeps
// Hijack working so the websocket upgrade can pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// RequestLogger logs method, path, status and duration. Also sets CORS headers.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// SecurityHeaders adds security headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth verifies the bearer access token and stores its claims on the
// request context.
func RequireAuth(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				response.Err(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "), auth.TokenTypeAccess)
			if err != nil {
				response.Err(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequirePortal admits callers whose token belongs to portal. Tech users
// pass on every portal when allowTech is set.
func RequirePortal(portal string, allowTech bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r)
			if !ok {
				response.Err(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Portal != portal && !(allowTech && claims.Portal == "tech") {
				response.Err(w, fmt.Sprintf("%s portal access required", portal), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRBAC enforces the caller's role permission flags on
// /api/v1/{portal}/ routes.
func RequireRBAC(pc *auth.PermCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			// Strip "/api/v1/{portal}/".
			rest := strings.TrimPrefix(r.URL.Path, "/api/v1/")
			if i := strings.Index(rest, "/"); i >= 0 {
				rest = rest[i+1:]
			} else {
				rest = ""
			}

			perm := auth.MapAPIPathToPermission(claims.Portal, rest, r.Method)
			if perm == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !pc.HasPermission(claims.Portal, claims.Role, perm) {
				response.Err(w, "Permission denied: "+perm, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter tracks request rates per key.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex

	LoginLimit int
	APILimit   int
	Window     time.Duration
}

// NewRateLimiter creates a RateLimiter with the default limits.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		requests:   make(map[string][]time.Time),
		LoginLimit: 10,
		APILimit:   600,
		Window:     time.Minute,
	}
}

// Prune drops keys with no hits inside the window.
func (rl *RateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key := range rl.requests {
		rl.cleanupOldRequests(key, rl.Window)
	}
}

func (rl *RateLimiter) cleanupOldRequests(key string, window time.Duration) {
	cutoff := time.Now().Add(-window)
	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) > 0 {
		rl.requests[key] = valid
	} else {
		delete(rl.requests, key)
	}
}

// CheckRateLimit records a hit for key and reports whether the limit is
// exceeded, how many hits remain and when the window resets.
func (rl *RateLimiter) CheckRateLimit(key string, limit int, window time.Duration) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.cleanupOldRequests(key, window)

	requests := rl.requests[key]
	resetTime := now.Add(window)
	if len(requests) > 0 {
		resetTime = requests[0].Add(window)
	}
	if len(requests) >= limit {
		return true, 0, resetTime
	}

	rl.requests[key] = append(requests, now)
	return false, limit - len(requests) - 1, resetTime
}

// clientIP keys the limiter on the connection address. Proxy headers are
// resolved into RemoteAddr by the router's RealIP middleware, so they are
// not read again here.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitMiddleware implements rate limiting per IP address.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			limit, key := rl.APILimit, "api:"+ip
			if r.URL.Path == "/api/v1/auth/login" {
				limit, key = rl.LoginLimit, "login:"+ip
			}

			exceeded, remaining, resetTime := rl.CheckRateLimit(key, limit, rl.Window)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))

			if exceeded {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(time.Until(resetTime).Seconds())))
				response.Err(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
