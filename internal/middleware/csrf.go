package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/fazenda/internal/csrf"
)

type csrfContextKey struct{}

// CSRFMiddleware checks the double-submit token on every unsafe request and
// makes the current token available to templates.
type CSRFMiddleware struct {
	logger   *slog.Logger
	isSecure bool
}

// NewCSRFMiddleware creates a new CSRFMiddleware.
func NewCSRFMiddleware(logger *slog.Logger, isSecure bool) *CSRFMiddleware {
	return &CSRFMiddleware{logger: logger, isSecure: isSecure}
}

// Protect rejects POST, PUT, PATCH and DELETE requests whose form token does
// not match the cookie.
func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if !csrf.ValidateRequest(r) {
				m.logger.Warn("csrf token mismatch",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", getClientIP(r),
				)
				http.Error(w, "Invalid or expired form. Please reload the page and try again.", http.StatusForbidden)
				return
			}
		}

		token, err := csrf.EnsureToken(w, r, m.isSecure)
		if err != nil {
			m.logger.Error("csrf token unavailable", "path", r.URL.Path, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		ctx := context.WithValue(r.Context(), csrfContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CSRFToken returns the token set by Protect, or "".
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey{}).(string)
	return token
}
