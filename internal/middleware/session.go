package middleware

import (
	"net/http"
	"time"

	"storefront-cart/internal/logger"
	"storefront-cart/internal/utils"

	"github.com/google/uuid"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "cart_session"

	maxSessionIDLen = 128
)

// SessionMiddleware resolves the cart session from the X-Session-ID header or
// the cart_session cookie, minting a new one when neither is usable.
func SessionMiddleware(cookieTTL time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := presentedSession(r)
			if sessionID == "" {
				sessionID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(cookieTTL.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, sessionID)

			ctx := utils.WithSessionID(r.Context(), sessionID)
			ctx = logger.WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// presentedSession returns the usable session id sent by the client, if any.
func presentedSession(r *http.Request) string {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			sessionID = c.Value
		}
	}
	if !validSessionID(sessionID) {
		return ""
	}
	return sessionID
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
