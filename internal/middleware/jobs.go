package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const JobTokenHeader = "X-Job-Token"

// RequireJobToken admits requests whose X-Job-Token matches the bcrypt hash.
// An empty hash disables the job endpoints.
func RequireJobToken(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				http.Error(w, "job endpoints disabled", http.StatusForbidden)
				return
			}
			token := r.Header.Get(JobTokenHeader)
			if token == "" {
				http.Error(w, "missing job token", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
				http.Error(w, "invalid job token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
