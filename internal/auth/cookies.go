package auth

import (
	"net/http"
	"time"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

// CookiePolicy holds the attributes that must be identical when a cookie is
// set and when it is cleared; browsers ignore a clear whose attributes differ.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// CookieTransport moves session tokens in and out of HTTP cookies.
type CookieTransport struct {
	policy CookiePolicy
	ttl    time.Duration
	now    func() time.Time
}

func NewCookieTransport(policy CookiePolicy, ttl time.Duration) *CookieTransport {
	return &CookieTransport{policy: policy, ttl: ttl, now: time.Now}
}

// Set writes the session cookie with a lifetime equal to the token TTL.
func (t *CookieTransport) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, t.cookie(token, int(t.ttl/time.Second), t.now().Add(t.ttl)))
}

// Clear overwrites the session cookie with an empty, already expired one.
// It is safe to call when no cookie was set.
func (t *CookieTransport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, t.cookie("", -1, time.Unix(0, 0)))
}

// Read returns the token from the request cookie, or "".
func (t *CookieTransport) Read(r *http.Request) string {
	c, err := r.Cookie(TokenCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (t *CookieTransport) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    value,
		Path:     "/",
		Domain:   t.policy.Domain,
		MaxAge:   maxAge,
		Expires:  expires,
		HttpOnly: true,
		Secure:   t.policy.Secure,
		SameSite: t.policy.SameSite,
	}
}
