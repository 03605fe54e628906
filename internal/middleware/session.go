package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/DukeRupert/fazenda/internal/session"
)

// SessionMiddleware attaches the visitor's workspace to the request.
type SessionMiddleware struct {
	manager  *session.Manager
	logger   *slog.Logger
	isSecure bool // Whether to set Secure flag on cookies (true in production)
}

// NewSessionMiddleware creates a new SessionMiddleware.
func NewSessionMiddleware(manager *session.Manager, logger *slog.Logger, isSecure bool) *SessionMiddleware {
	return &SessionMiddleware{
		manager:  manager,
		logger:   logger,
		isSecure: isSecure,
	}
}

// Attach resolves the session cookie to a workspace, issuing a new cookie
// when the request has none or an unreadable one.
//
// The workspace can be retrieved in handlers using:
//
//	ws := session.FromRequest(r)
func (m *SessionMiddleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id uuid.UUID
		if cookie, err := r.Cookie(session.CookieName); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed
			} else {
				m.logger.Debug("malformed session cookie replaced", "path", r.URL.Path)
			}
		}

		ws, known := m.manager.Resolve(r.Context(), id)
		if !known {
			SetSessionCookie(w, ws.ID.String(), m.isSecure)
		}

		next.ServeHTTP(w, r.WithContext(session.WithWorkspace(r.Context(), ws)))
	})
}

// SetSessionCookie sets the session cookie on the response.
//
// Cookie Settings:
// - HttpOnly: true - Prevents JavaScript access (XSS protection)
// - Secure: configurable - Set true in production (HTTPS only)
// - SameSite: Lax - Prevents CSRF while allowing normal navigation
func SetSessionCookie(w http.ResponseWriter, id string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     session.CookiePath,
		MaxAge:   session.CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
