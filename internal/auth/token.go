package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// TokenValidator checks whether a presented credential is valid. The
// registry ships a single shared-secret implementation; per-subscriber
// tokens or signed requests can replace it without touching handlers.
type TokenValidator interface {
	Validate(token string) bool
}

type StaticTokenValidator struct {
	token string
}

func NewStaticTokenValidator(token string) *StaticTokenValidator {
	return &StaticTokenValidator{token: token}
}

func (v *StaticTokenValidator) Validate(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(v.token)) == 1
}

// TokenFromRequest extracts the credential from a request. Precedence:
// Authorization bearer token, then the x-access-token header, then the
// plain_token query parameter. The first carrier present wins; a bearer
// token is not rescued by a matching query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := r.Header.Get("x-access-token"); t != "" {
		return t
	}
	return r.URL.Query().Get("plain_token")
}

// RequireToken rejects requests whose credential is absent or invalid
// before they reach the handler.
func RequireToken(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" || !v.Validate(token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "Invalid or missing credentials"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
