package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CookieName is the session cookie set by the login handler.
const CookieName = "sentinel_session"

// Session holds the token issued to logged-in clients. A new token is
// generated per process, so restarting the server logs everyone out.
type Session struct {
	token string
}

func NewSession() *Session {
	return &Session{token: uuid.NewString()}
}

// Token returns the value stored in the session cookie.
func (s *Session) Token() string {
	return s.token
}

// Valid reports whether r carries the current session cookie.
func (s *Session) Valid(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(s.token)) == 1
}

// publicPaths are served without a session.
var publicPaths = map[string]bool{
	"/auth/login": true,
	"/resize":     true,
	"/healthz":    true,
}

// AuthMiddleware rejects requests without a valid session cookie, except for public paths.
func AuthMiddleware(session *Session, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[strings.TrimSuffix(r.URL.Path, "/")] || session.Valid(r) {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
