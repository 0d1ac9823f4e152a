package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"chatstream-backend/internal/auth"
	"chatstream-backend/internal/config"
	"chatstream-backend/internal/models"
	"chatstream-backend/internal/store"
)

// Custom errors for auth service
var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
	ErrCreatingUser       = errors.New("failed to create user")
	ErrValidation         = errors.New("input validation failed")
)

type AuthService struct {
	store store.Store
	cfg   *config.Config
}

func NewAuthService(s store.Store, cfg *config.Config) *AuthService {
	return &AuthService{
		store: s,
		cfg:   cfg,
	}
}

// Register creates a new user and returns it with a fresh access token.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (string, *models.User, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return "", nil, fmt.Errorf("%w: email and password cannot be empty", ErrValidation)
	}
	if len(req.Password) < 8 {
		return "", nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	// Check if user already exists
	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return "", nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("ERROR [AuthService] Register: checking user existence for %s: %v", email, err)
		return "", nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("ERROR [AuthService] Register: hashing password for %s: %v", email, err)
		return "", nil, ErrHashingPassword
	}

	user := &models.User{
		ID:             uuid.New(),
		Email:          email,
		Name:           req.Name,
		HashedPassword: hashedPassword,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		log.Printf("ERROR [AuthService] Register: creating user for %s: %v", email, err)
		return "", nil, fmt.Errorf("%w: %v", ErrCreatingUser, err)
	}

	token, err := auth.NewAccessToken(user.ID, user.Email, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		log.Printf("ERROR [AuthService] Register: generating JWT for user %s: %v", user.ID, err)
		return "", nil, ErrCreatingToken
	}

	log.Printf("[AuthService] Register: created user %s (ID: %s)", email, user.ID)
	return token, user, nil
}

// Login verifies user credentials and returns an access token and user info.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (string, *models.User, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Don't reveal whether the user exists
			return "", nil, ErrInvalidCredentials
		}
		log.Printf("ERROR [AuthService] Login: retrieving user %s: %v", email, err)
		return "", nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !auth.CheckPasswordHash(req.Password, user.HashedPassword) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(user.ID, user.Email, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		log.Printf("ERROR [AuthService] Login: generating JWT for user %s: %v", user.ID, err)
		return "", nil, ErrCreatingToken
	}

	log.Printf("[AuthService] Login: user %s (ID: %s)", email, user.ID)
	return token, user, nil
}

// GetUser loads the authenticated user's profile.
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [AuthService] GetUser: retrieving user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}
