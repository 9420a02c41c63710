package middleware

import (
	"crypto/subtle"
	"net/http"
)

// cronSecretHeader carries the shared secret for scheduled triggers.
const cronSecretHeader = "X-Cron-Secret"

// CronSecret guards internal trigger endpoints with a shared secret.
// Requests without a matching header are rejected; an empty configured
// secret rejects everything so a missing deployment value fails closed.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(cronSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid credentials"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
