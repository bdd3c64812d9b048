// Package session moves session tokens between HTTP messages and the
// token service: in through a cookie or bearer header, out through a cookie.
package session

import (
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// CookieName is the name of the session cookie.
const CookieName = "token"

type Transport struct {
	maxAge int
	secure bool
}

// NewTransport returns a transport whose cookie lives as long as a token.
// secure marks the cookie Secure and should be set only in production.
func NewTransport(ttl time.Duration, secure bool) *Transport {
	return &Transport{maxAge: int(ttl / time.Second), secure: secure}
}

// ExtractToken prefers the session cookie and falls back to an
// "Authorization: Bearer" header. It returns "" when neither carries a token.
func (t *Transport) ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return jwtauth.TokenFromHeader(r)
}

func (t *Transport) Attach(w http.ResponseWriter, token string) {
	http.SetCookie(w, t.cookie(token, t.maxAge))
}

// Clear expires the session cookie on the client.
func (t *Transport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, t.cookie("", -1))
}

func (t *Transport) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
