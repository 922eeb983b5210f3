// Package repositories implements the data access layer (repository pattern)
// for the DocuForge backend. Each repository type encapsulates all database
// queries for a domain entity. Handlers never issue SQL directly — all
// database access goes through this layer, which makes query logic testable in
// isolation and prevents accidental cross-domain data access.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/docuforge/docuforge/internal/db/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, auth_identity_id, email, name, avatar_url, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// GetOrCreateFromIdentity resolves the internal user for an external auth
// identity, creating the row lazily on first sight and refreshing profile
// fields when they drift. The whole operation is one upsert so that a new
// user's first page load, which fires several authenticated requests in
// parallel, cannot race two inserts into the auth_identity_id unique
// constraint; whichever statement loses the conflict falls through to the
// DO UPDATE and returns the existing row.
func (r *UserRepository) GetOrCreateFromIdentity(ctx context.Context, authIdentityID, email, name string) (*models.User, error) {
	now := time.Now()

	query := `
		INSERT INTO users (id, auth_identity_id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (auth_identity_id) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
		RETURNING id, auth_identity_id, email, name, avatar_url, created_at, updated_at
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query,
		uuid.New().String(),
		authIdentityID,
		email,
		name,
		now,
	))
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.AuthIdentityID,
		&user.Email,
		&user.Name,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}
