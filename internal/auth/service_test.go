package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagehost/service/internal/metastore"
)

const testSecret = "auth-test-secret"

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := metastore.NewBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, testSecret)
}

// uidFromKey verifies the key's signature and extracts the uid claim.
func uidFromKey(t *testing.T, key string) string {
	t.Helper()
	token, err := jwt.Parse(key, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	uid, _ := claims["uid"].(string)
	return uid
}

func TestRegisterIssuesSignedKey(t *testing.T) {
	svc := newTestService(t)

	creds, err := svc.Register(context.Background(), "ansel", "f/64 and be there")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(creds.UserID, "u_"), "uid %q", creds.UserID)
	assert.Equal(t, creds.UserID, uidFromKey(t, creds.APIKey))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ansel", "first")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ansel", "second")
	assert.ErrorIs(t, err, metastore.ErrUsernameTaken)
}

func TestLoginVerifiesPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "ansel", "f/64 and be there")
	require.NoError(t, err)

	creds, err := svc.Login(ctx, "ansel", "f/64 and be there")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, creds.UserID)
	assert.Equal(t, creds.UserID, uidFromKey(t, creds.APIKey))

	_, err = svc.Login(ctx, "ansel", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "f/64 and be there")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLeavesOldKeysValid(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "ansel", "pw")
	require.NoError(t, err)
	loggedIn, err := svc.Login(ctx, "ansel", "pw")
	require.NoError(t, err)

	// Keys never expire and login does not revoke; both resolve to the user.
	assert.Equal(t, registered.UserID, uidFromKey(t, registered.APIKey))
	assert.Equal(t, registered.UserID, uidFromKey(t, loggedIn.APIKey))
}

func TestIssueDevKey(t *testing.T) {
	svc := newTestService(t)

	creds, err := svc.IssueDevKey(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(creds.UserID, "u_"))
	assert.Equal(t, creds.UserID, uidFromKey(t, creds.APIKey))
}
