package web

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// authMiddleware enforces basic auth against the configured bcrypt hash.
// Username is fixed to "autoapply", all API clients are machines anyway.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if ok && username == "autoapply" {
			if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="autoapply status"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
