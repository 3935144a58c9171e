package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/huddleapp/huddle/internal/auth"
	"github.com/huddleapp/huddle/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "huddle_session"

// RequireAuth validates the session cookie, loads the user's current role
// and populates AuthContext. Unauthenticated requests get a JSON 401.
func RequireAuth(sessions *store.SessionStore, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			// Role is read per request so demotions take effect without
			// invalidating the session.
			user, err := users.GetByID(sess.UserID)
			if err != nil || user == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				Role:      user.Role,
				SessionID: sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireAdmin allows admin and super_admin roles through.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin allows only the super_admin role through.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsSuperAdmin(r.Context()) {
			forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireServiceToken authenticates cron and operator calls. A bearer JWT
// signed with the shared service secret is accepted, as is an already
// authenticated super_admin session (so the endpoints stay usable from
// the admin UI).
func RequireServiceToken(secret []byte, sessions *store.SessionStore, users *store.UserStore) func(http.Handler) http.Handler {
	sessionAuth := RequireAuth(sessions, users)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
				token := strings.TrimPrefix(header, "Bearer ")
				if _, err := auth.VerifyServiceToken(secret, token); err != nil {
					unauthorized(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			sessionAuth(RequireSuperAdmin(next)).ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "insufficient role")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
