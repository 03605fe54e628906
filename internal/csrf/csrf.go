// Package csrf guards the dashboard's form posts with a double-submit token.
//
// Every screen action is a plain form POST, so each rendered form carries
// the token in a hidden field and the browser sends the same value back in
// the fazenda_csrf cookie. A cross-site page can make the browser send the
// cookie but cannot read it, so it cannot fill the field.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
)

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "fazenda_csrf"

	// FormFieldName is the hidden input every screen form carries.
	FormFieldName = "csrf_token"

	// HeaderName carries the token on scripted requests that post
	// without the hidden field.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes in a token.
	TokenLength = 32

	// CookieMaxAge covers a working day with the dashboard left open, so
	// forms rendered in the morning still post in the afternoon.
	CookieMaxAge = 12 * 60 * 60
)

// GenerateToken returns TokenLength random bytes, base64 URL-encoded.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the two tokens in constant time. Empty tokens
// never match.
func ValidateToken(cookieToken, formToken string) bool {
	if cookieToken == "" || formToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}

// ValidateRequest checks the cookie against the X-CSRF-Token header, or
// against the form field when the header is absent.
func ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	token := r.Header.Get(HeaderName)
	if token == "" {
		token = r.FormValue(FormFieldName)
	}
	return ValidateToken(cookie.Value, token)
}

// SetCookie stores token in the CSRF cookie. It is not HttpOnly; SameSite
// Strict keeps it off cross-site posts altogether.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: false,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// EnsureToken returns the request's token, issuing a new cookie when the
// request has none.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	SetCookie(w, token, isSecure)
	return token, nil
}
