package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetUserByEmail retrieves a user by their email address.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, name, hashed_password, created_at, updated_at
		FROM users
		WHERE email = $1`

	user := &models.User{}
	err := s.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.HashedPassword,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetUserByEmail: Failed to query/scan user for email %s: %v", email, err)
		return nil, fmt.Errorf("database error fetching user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, name, hashed_password, created_at, updated_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.HashedPassword,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetUserByID: Failed to query/scan user %s: %v", id, err)
		return nil, fmt.Errorf("database error fetching user by id: %w", err)
	}

	return user, nil
}

// CreateUser inserts a new user record into the database.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	log.Printf("[PostgresStore] CreateUser called for: %s (UserID: %s)", user.Email, user.ID)
	query := `
		INSERT INTO users (id, email, name, hashed_password)
		VALUES ($1, $2, $3, $4)`
	// created_at and updated_at have database defaults (NOW())

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.HashedPassword,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// "23505" is unique_violation (duplicate email)
			log.Printf("ERROR [PostgresStore] CreateUser: PostgreSQL error executing insert for email %s: Code=%s, Message=%s", user.Email, pgErr.Code, pgErr.Message)
		} else {
			log.Printf("ERROR [PostgresStore] CreateUser: Failed to execute insert for email %s: %v", user.Email, err)
		}
		return fmt.Errorf("database error creating user: %w", err)
	}

	return nil
}

// --- Linked Account Token Methods ---

const getUserToken = `-- name: GetUserToken :one
SELECT id, user_id, provider, encrypted_access_token, encrypted_refresh_token, token_type, scope, expires_at, created_at, updated_at
FROM user_tokens
WHERE user_id = $1
ORDER BY updated_at DESC
LIMIT 1;
`

// GetUserToken fetches the most recently refreshed token row for a user.
func (s *PostgresStore) GetUserToken(ctx context.Context, userID uuid.UUID) (*models.UserToken, error) {
	row := s.db.QueryRow(ctx, getUserToken, userID)

	var tok models.UserToken
	err := row.Scan(
		&tok.ID,
		&tok.UserID,
		&tok.Provider,
		&tok.EncryptedAccessToken,
		&tok.EncryptedRefreshToken,
		&tok.TokenType,
		&tok.Scope,
		&tok.ExpiresAt,
		&tok.CreatedAt,
		&tok.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning user token: %w", err)
	}
	return &tok, nil
}

const upsertUserToken = `-- name: UpsertUserToken :exec
INSERT INTO user_tokens (
    id, user_id, provider, encrypted_access_token, encrypted_refresh_token, token_type, scope, expires_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (user_id, provider) DO UPDATE SET
    encrypted_access_token = EXCLUDED.encrypted_access_token,
    encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
    token_type = EXCLUDED.token_type,
    scope = EXCLUDED.scope,
    expires_at = EXCLUDED.expires_at,
    updated_at = NOW();
`

// UpsertUserToken stores or refreshes the linked account tokens for a user.
func (s *PostgresStore) UpsertUserToken(ctx context.Context, arg store.UpsertUserTokenParams) error {
	_, err := s.db.Exec(ctx, upsertUserToken,
		uuid.New(),
		arg.UserID,
		arg.Provider,
		arg.EncryptedAccessToken,
		arg.EncryptedRefreshToken,
		arg.TokenType,
		arg.Scope,
		arg.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("error upserting user token: %w", err)
	}
	return nil
}

const hasLinkedAccount = `-- name: HasLinkedAccount :one
SELECT EXISTS (SELECT 1 FROM user_tokens WHERE user_id = $1);
`

// HasLinkedAccount reports whether the user has any linked external account.
// This is the predicate that unlocks the calendar/mail capability set.
func (s *PostgresStore) HasLinkedAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, hasLinkedAccount, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking linked account: %w", err)
	}
	return exists, nil
}
