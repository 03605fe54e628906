// Package session keeps the per-browser workspaces: the grids, drafts and
// pending notifications of each visitor, found by a cookie.
package session

import "time"

const (
	// CookieName is the name of the cookie that stores the session id.
	CookieName = "fazenda_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge sets the cookie expiration (30 days). Display preferences
	// outlive the in-memory workspace, which expires after the idle timeout.
	CookieMaxAge = 30 * 24 * 60 * 60

	// DefaultIdleTimeout is used when the manager is given none.
	DefaultIdleTimeout = 2 * time.Hour

	// DefaultMaxSessions caps live workspaces when the manager is given no
	// limit.
	DefaultMaxSessions = 1000

	// PeriodDays is the length of the period window a session starts with
	// when its preferred sales mode is "period".
	PeriodDays = 7
)
