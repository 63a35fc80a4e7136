package middleware

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/imagehost/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated user's ID.
const UserIDKey contextKey = "userID"

// APIKeyHeader is the header clients send their key in.
const APIKeyHeader = "X-API-Key"

// RequireAuth returns middleware that validates the X-API-Key token and
// injects the caller's user ID into the request context. Keys are signed,
// non-expiring tokens; possession is the only credential.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				response.Unauthorized(w, "missing API key")
				return
			}

			token, err := jwt.Parse(key, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				response.Unauthorized(w, "invalid API key")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				response.Unauthorized(w, "invalid API key")
				return
			}
			uid, _ := claims["uid"].(string)
			if uid == "" {
				response.Unauthorized(w, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
