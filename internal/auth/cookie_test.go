package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSetSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "jwt-value", 7, true)

	c := responseCookie(t, rec, SessionCookieName)
	require.Equal(t, "jwt-value", c.Value)
	require.Equal(t, 7*24*60*60, c.MaxAge)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.Equal(t, "/", c.Path)
}

func TestClearSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookie(rec)

	c := responseCookie(t, rec, SessionCookieName)
	require.Empty(t, c.Value)
	require.Equal(t, -1, c.MaxAge)
}

func TestCSRFCookie_ReadableByScripts(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCSRFCookie(rec, "tok", false)

	c := responseCookie(t, rec, CSRFCookieName)
	require.False(t, c.HttpOnly)
	require.False(t, c.Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	require.Equal(t, "tok", GetCSRFCookie(req))
	require.Empty(t, GetSessionCookie(req))
}

func TestNeedsRehash(t *testing.T) {
	weak, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.True(t, NeedsRehash(string(weak)))

	current, err := HashPassword("Secret123")
	require.NoError(t, err)
	require.False(t, NeedsRehash(current))

	require.False(t, NeedsRehash("not-a-hash"))
}
