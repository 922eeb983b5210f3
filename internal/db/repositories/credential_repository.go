// credential_repository.go implements CredentialRepository, persistence for
// ProviderCredential rows. The (user_id, provider) pair carries a unique
// constraint and every write is an upsert against it, so two concurrent OAuth
// callbacks for the same pair can never produce two rows — the database, not
// the application, arbitrates the race.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/provider"
)

// CredentialRepository handles database operations for provider credentials
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert inserts or overwrites the credential for (user, provider). A
// reconnection replaces token material, expiry, and scopes and reactivates
// the row; it never creates a second one.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.ProviderCredential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	cred.UpdatedAt = time.Now()

	query := `
		INSERT INTO provider_credentials (
			id, user_id, provider, access_token_sealed, refresh_token_sealed,
			expires_at, scopes, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token_sealed = EXCLUDED.access_token_sealed,
			refresh_token_sealed = EXCLUDED.refresh_token_sealed,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		cred.ID, cred.UserID, cred.Provider, cred.AccessTokenSealed,
		cred.RefreshTokenSealed, cred.ExpiresAt, cred.Scopes,
		cred.IsActive, cred.CreatedAt, cred.UpdatedAt,
	)
	return err
}

// Get retrieves the credential for (user, provider) regardless of state
func (r *CredentialRepository) Get(ctx context.Context, userID string, kind provider.Kind) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	query := `SELECT * FROM provider_credentials WHERE user_id = $1 AND provider = $2`
	err := r.db.GetContext(ctx, &cred, query, userID, kind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// GetUsable retrieves the credential for (user, provider) only if it is
// active and unexpired. This is the lookup both the repository listing and
// the pipeline export use.
func (r *CredentialRepository) GetUsable(ctx context.Context, userID string, kind provider.Kind) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	query := `
		SELECT * FROM provider_credentials
		WHERE user_id = $1 AND provider = $2
		  AND is_active = TRUE
		  AND (expires_at IS NULL OR expires_at > NOW())`
	err := r.db.GetContext(ctx, &cred, query, userID, kind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// ListForUser returns all credentials a user holds, for the connections view
func (r *CredentialRepository) ListForUser(ctx context.Context, userID string) ([]*models.ProviderCredential, error) {
	var creds []*models.ProviderCredential
	query := `SELECT * FROM provider_credentials WHERE user_id = $1 ORDER BY provider`
	err := r.db.SelectContext(ctx, &creds, query, userID)
	return creds, err
}

// SetActive flips the active flag for (user, provider)
func (r *CredentialRepository) SetActive(ctx context.Context, userID string, kind provider.Kind, active bool) error {
	query := `
		UPDATE provider_credentials
		SET is_active = $3, updated_at = $4
		WHERE user_id = $1 AND provider = $2`
	_, err := r.db.ExecContext(ctx, query, userID, kind, active, time.Now())
	return err
}

// DeactivateExpired flips the active flag off for every credential past its
// expiry and returns how many rows changed. Run periodically by the expiry
// sweep job.
func (r *CredentialRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE provider_credentials
		SET is_active = FALSE, updated_at = $1
		WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= NOW()`
	res, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
