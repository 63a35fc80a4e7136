package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func signKey(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	key, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return key
}

func authProbe() (http.Handler, *string) {
	var seenUID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUID, _ = r.Context().Value(UserIDKey).(string)
		w.WriteHeader(http.StatusOK)
	})
	return RequireAuth(testSecret)(next), &seenUID
}

func TestRequireAuthInjectsUserID(t *testing.T) {
	handler, seenUID := authProbe()

	key := signKey(t, testSecret, jwt.MapClaims{"uid": "u_abc123", "iat": time.Now().Unix()})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, key)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u_abc123", *seenUID)
}

func TestRequireAuthMissingKey(t *testing.T) {
	handler, seenUID := authProbe()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"auth"`)
	assert.Empty(t, *seenUID)
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", signKey(t, "other-secret", jwt.MapClaims{"uid": "u_abc123"})},
		{"missing uid claim", signKey(t, testSecret, jwt.MapClaims{"iat": time.Now().Unix()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, seenUID := authProbe()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(APIKeyHeader, tt.key)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, *seenUID)
		})
	}
}
