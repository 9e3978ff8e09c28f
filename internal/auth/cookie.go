package auth

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName holds the admin JWT.
	SessionCookieName = "nr01_session"

	// CSRFCookieName holds the double-submit token. Pages and scripts read it,
	// so it is not HttpOnly.
	CSRFCookieName = "_csrf"
)

// deskCookie builds the cookies the desk sets: root path, SameSite=Lax and
// Secure outside development. maxAge follows http.Cookie semantics.
func deskCookie(name, value string, maxAge int, httpOnly, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetSessionCookie stores an admin session token for sessionDays.
func SetSessionCookie(w http.ResponseWriter, token string, sessionDays int, isProduction bool) {
	maxAge := int((time.Duration(sessionDays) * 24 * time.Hour).Seconds())
	http.SetCookie(w, deskCookie(SessionCookieName, token, maxAge, true, isProduction))
}

// ClearSessionCookie ends the admin session in the browser.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, deskCookie(SessionCookieName, "", -1, true, false))
}

func GetSessionCookie(r *http.Request) string {
	return readCookie(r, SessionCookieName)
}

// SetCSRFCookie issues the token that forms and admin scripts echo back.
func SetCSRFCookie(w http.ResponseWriter, token string, isProduction bool) {
	http.SetCookie(w, deskCookie(CSRFCookieName, token, 0, false, isProduction))
}

func GetCSRFCookie(r *http.Request) string {
	return readCookie(r, CSRFCookieName)
}
