package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRequireAuthPage_RedirectsToLogin(t *testing.T) {
	h := RequireAuthPage(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/invites?assessment_id=A", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next="+url.QueryEscape("/admin/invites?assessment_id=A"), rec.Header().Get("Location"))
}

func TestAuthMiddleware_InjectsUser(t *testing.T) {
	userID := uuid.New()
	token, err := CreateToken(userID, "secret", 1)
	require.NoError(t, err)

	var got uuid.UUID
	h := AuthMiddleware("secret")(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUserID(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invites", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, userID, got)
}

func TestAuthMiddleware_BadTokenIsAnonymous(t *testing.T) {
	h := AuthMiddleware("secret")(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invites", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateCSRF(t *testing.T) {
	form := url.Values{CSRFCookieName: {"tok"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
	require.NoError(t, ValidateCSRF(req))

	req = httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-CSRF-Token", "other")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
	require.Error(t, ValidateCSRF(req))

	req = httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-CSRF-Token", "tok")
	require.Error(t, ValidateCSRF(req))
}

func TestSafeNext(t *testing.T) {
	require.Equal(t, "/admin", SafeNext(""))
	require.Equal(t, "/admin", SafeNext("https://evil.example"))
	require.Equal(t, "/admin", SafeNext("//evil.example"))
	require.Equal(t, "/admin/proposals", SafeNext("/admin/proposals"))
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("Secret123")
	require.NoError(t, err)
	require.NoError(t, VerifyPassword(hash, "Secret123"))
	require.Error(t, VerifyPassword(hash, "secret123"))
}
