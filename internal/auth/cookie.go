package auth

import (
	"net/http"
	"time"
)

// Cookie names.
const (
	SessionCookie = "token"
	StateCookie   = "oauth_state"
)

// SetSessionCookie stores a session token in an HttpOnly cookie.
//
// HttpOnly keeps the token away from page scripts; SameSite=Lax stops the
// browser from attaching it to cross-site POSTs. secure should be true
// whenever the app is served over HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie. The token
// itself stays valid until it expires; without the cookie it is never sent.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
