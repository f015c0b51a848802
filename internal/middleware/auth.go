package middleware

import (
	"net/http"
	"strings"

	"github.com/theatlasimpact/papermark-vansgiving/internal/auth"
)

// TokenValidator validates a bearer token and returns its claims.
// *auth.JWTService satisfies this interface.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// Auth is a middleware that authenticates requests via a Bearer token.
// A valid access token puts the user ID into the request context for
// handlers and the logging middleware. Requests without an Authorization
// header pass through unauthenticated, so handlers decide whether the
// route requires auth. A present but invalid token is rejected with 401.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				reject(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil || claims.Type != auth.TokenTypeAccess {
				reject(w, r)
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request) {
	ctx := SetErrorCode(r.Context(), "auth_failed")
	UpdateResponseContext(w, ctx)
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
