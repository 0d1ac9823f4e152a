package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstream-backend/internal/auth"
	"chatstream-backend/internal/config"
	"chatstream-backend/internal/models"
	"chatstream-backend/internal/store"
)

// authStore layers a user table over the fake store.
type authStore struct {
	*fakeStore
	users map[string]*models.User
}

func newAuthStore() *authStore {
	return &authStore{fakeStore: newFakeStore(), users: make(map[string]*models.User)}
}

func (s *authStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.users[email]; ok {
		return user, nil
	}
	return nil, store.ErrNotFound
}

func (s *authStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *authStore) CreateUser(ctx context.Context, user *models.User) error {
	s.users[user.Email] = user
	return nil
}

func testAuthConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		TokenExpiration: time.Hour,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	st := newAuthStore()
	svc := NewAuthService(st, testAuthConfig())

	token, user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "Alice@Example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, token)

	// The stored hash is never the raw password.
	assert.NotEqual(t, "correct horse battery", user.HashedPassword)

	// The issued token parses with the configured secret.
	claims := &auth.CustomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID, claims.UserID)

	loginToken, loginUser, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loginUser.ID)
	assert.NotEmpty(t, loginToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	st := newAuthStore()
	svc := NewAuthService(st, testAuthConfig())

	_, _, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@b.com", Password: "longenough1"})
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), models.RegisterRequest{Email: "a@b.com", Password: "longenough2"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(newAuthStore(), testAuthConfig())

	_, _, err := svc.Register(context.Background(), models.RegisterRequest{Email: "", Password: "longenough1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.Register(context.Background(), models.RegisterRequest{Email: "a@b.com", Password: "short"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginWrongPassword(t *testing.T) {
	st := newAuthStore()
	svc := NewAuthService(st, testAuthConfig())

	_, _, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@b.com", Password: "longenough1"})
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), models.LoginRequest{Email: "a@b.com", Password: "wrongpassword"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@b.com", Password: "whatever123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
