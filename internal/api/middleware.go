package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/logging"
)

// RequestIDWithLogging stamps every request with a request id and trace id
// (generating both if absent), echoes them back as response headers, and
// stores them in the request context so downstream handlers and
// logging.Ctx share one correlation pair.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
			}
			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = logging.GenerateTraceID()
			}

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			ctx = logging.ContextWithTraceID(ctx, traceID)

			w.Header().Set("X-Request-ID", requestID)
			w.Header().Set("X-Trace-ID", traceID)

			start := time.Now()
			next.ServeHTTP(w, r.WithContext(ctx))
			logging.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}

// CORS returns a go-chi/cors middleware. In production it is restricted to
// cfg.AllowedOrigins; outside production every origin is allowed so local
// frontend dev servers on arbitrary ports are never blocked.
func CORS(cfg config.ServerConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if cfg.Environment != "production" {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// SearchRateLimit throttles the search endpoints by client IP; the rest of
// the surface is read-mostly and left unthrottled.
func SearchRateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requests, window)
}

// SecurityHeaders adds the baseline response headers for API responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// AdminLocalOnly rejects any /admin/* request whose remote address is not
// loopback, unless cfg.AllowNonLoopbackBind overrides it. This is
// defense-in-depth alongside cmd/server's bind-address check: even if the
// process is reachable from a non-loopback interface (reverse proxy,
// misconfigured bind), admin routes still reject remote callers.
func AdminLocalOnly(cfg config.ServerConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AllowNonLoopbackBind {
				next.ServeHTTP(w, r)
				return
			}
			if !isLoopbackRemote(r) {
				NewResponseWriter(w, r).Forbidden("admin endpoints are only reachable from loopback")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackRemote(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	host = strings.TrimSpace(host)
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
