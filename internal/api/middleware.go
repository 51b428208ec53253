// Package api implements the read-only course catalog REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth modes.
const (
	AuthDisabled = "disabled"
	AuthToken    = "token"
	AuthJWT      = "jwt"
)

// AuthMiddleware returns middleware that validates the Bearer credential.
//   - disabled: all requests pass through.
//   - token: the credential must equal secret.
//   - jwt: the credential must be an HS256 JWT signed with secret.
func AuthMiddleware(mode, secret string) func(http.Handler) http.Handler {
	tokens := &TokenService{Secret: []byte(secret)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mode == "" || mode == AuthDisabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			cred, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || cred == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			switch mode {
			case AuthToken:
				ok = subtle.ConstantTimeCompare([]byte(cred), []byte(secret)) == 1
			case AuthJWT:
				_, err := tokens.Validate(cred)
				ok = err == nil
			default:
				ok = false
			}
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
