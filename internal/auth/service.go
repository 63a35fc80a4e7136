// Package auth implements account registration, login and API key issuance.
//
// An API key is a signed, non-expiring HS256 token carrying the user's id.
// Possession of the key is the only credential; there is no session state and
// no refresh flow.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/imagehost/service/internal/metastore"
)

// ErrInvalidCredentials is returned when the username or password is wrong.
// Login deliberately does not distinguish the two cases.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials holds a freshly issued key and the account it belongs to.
type Credentials struct {
	APIKey string
	UserID string
}

// Service contains the business logic for accounts and API keys.
type Service struct {
	store  metastore.Store
	secret string
}

// NewService creates a new auth Service.
func NewService(store metastore.Store, secret string) *Service {
	return &Service{store: store, secret: secret}
}

// Register creates a new account and issues its first API key.
// Returns metastore.ErrUsernameTaken when the name is already in use.
func (s *Service) Register(ctx context.Context, username, password string) (*Credentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := metastore.User{
		ID:           newUserID(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().Unix(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, metastore.ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	key, err := s.issueKey(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue key: %w", err)
	}
	return &Credentials{APIKey: key, UserID: u.ID}, nil
}

// Login verifies the password and issues a fresh API key. Previously issued
// keys stay valid.
func (s *Service) Login(ctx context.Context, username, password string) (*Credentials, error) {
	u, err := s.store.UserByName(ctx, username)
	if errors.Is(err, metastore.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	key, err := s.issueKey(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue key: %w", err)
	}
	return &Credentials{APIKey: key, UserID: u.ID}, nil
}

// IssueDevKey mints a key for a brand-new anonymous id without creating an
// account. Meant for local development and smoke tests; the route is not
// registered in production.
func (s *Service) IssueDevKey(ctx context.Context) (*Credentials, error) {
	uid := newUserID()
	key, err := s.issueKey(uid)
	if err != nil {
		return nil, fmt.Errorf("issue key: %w", err)
	}
	return &Credentials{APIKey: key, UserID: uid}, nil
}

// issueKey signs a token for the given user id. No exp claim: keys live until
// the signing secret is rotated.
func (s *Service) issueKey(uid string) (string, error) {
	claims := jwt.MapClaims{
		"uid": uid,
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// newUserID returns a fresh id like "u_1f6f37ab90c2".
func newUserID() string {
	u := uuid.New()
	return "u_" + hex.EncodeToString(u[:])[:12]
}
