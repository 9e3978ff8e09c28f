package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LoginResponse represents the login response
type LoginResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

// HandleLogin processes the login form. Browsers are redirected; clients
// that ask for JSON get the apperrors envelope.
func HandleLogin(svc *Service, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid form data")
			return
		}

		login := strings.TrimSpace(r.FormValue("login"))
		password := r.FormValue("password")
		next := SafeNext(r.FormValue("next"))
		wantsJSON := strings.Contains(r.Header.Get("Accept"), "application/json")

		user, err := svc.Authenticate(r.Context(), login, password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInactive) {
				log.Debug().Err(err).Msg("Login failed")
				if err := auditor.LogLoginFailed(r.Context(), login, r.RemoteAddr); err != nil {
					log.Error().Err(err).Msg("Failed to log audit event")
				}
				if wantsJSON {
					apperrors.WriteUnauthorized(w, r, "Invalid credentials")
					return
				}
				http.Redirect(w, r, "/login?error=invalid&next="+url.QueryEscape(next), http.StatusSeeOther)
				return
			}
			log.Error().Err(err).Msg("Failed to authenticate")
			apperrors.WriteInternalError(w, r, "Login failed")
			return
		}

		token, err := CreateToken(user.ID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}
		SetSessionCookie(w, token, sessionDays, isProduction)

		if err := auditor.LogLogin(r.Context(), user.ID, r.RemoteAddr); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		log.Info().
			Str("user_id", user.ID.String()).
			Str("username", user.Username).
			Msg("Admin logged in")

		if wantsJSON {
			apperrors.WriteSuccess(w, r, http.StatusOK, LoginResponse{UserID: user.ID, Username: user.Username})
			return
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}

// HandleLogout processes user logout
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w)

	userID := GetUserID(r.Context())
	if userID != uuid.Nil {
		log.Info().Str("user_id", userID.String()).Msg("Admin logged out")
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// SafeNext keeps post-login redirects on this site.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/admin"
	}
	return next
}
