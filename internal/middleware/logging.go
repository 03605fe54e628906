package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DukeRupert/fazenda/internal/session"
)

// quietPaths are polled by the load balancer and Prometheus.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// redactedParams never reach the log. Screen forms post the CSRF token in
// the body, but a GET form submitted by mistake would put it in the query.
var redactedParams = map[string]bool{
	"csrf_token": true,
	"token":      true,
}

// RequestLoggingMiddleware writes one "request" line per screen request.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{logger: logger}
}

// Handler logs method, path, status, duration and the session tag. Upstream
// failures surface as 5xx and are logged at warn.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quietPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		attrs := []any{
			"method", r.Method,
			"path", logPath(r.URL),
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
		}
		if sid := sessionTag(r); sid != "" {
			attrs = append(attrs, "session", sid)
		}

		if sw.status >= http.StatusInternalServerError {
			m.logger.Warn("request", attrs...)
			return
		}
		m.logger.Info("request", attrs...)
	})
}

// sessionTag is the first eight characters of the session cookie.
func sessionTag(r *http.Request) string {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil || len(cookie.Value) < 8 {
		return ""
	}
	return cookie.Value[:8]
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// logPath keeps the query (filters and page numbers help when reading the
// log) with redacted values replaced.
func logPath(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	parts := strings.Split(u.RawQuery, "&")
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if redactedParams[strings.ToLower(key)] {
			parts[i] = key + "=[REDACTED]"
		}
	}
	return u.Path + "?" + strings.Join(parts, "&")
}
