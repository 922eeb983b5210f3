package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/provider"
)

var credCols = []string{
	"id", "user_id", "provider", "access_token_sealed", "refresh_token_sealed",
	"expires_at", "scopes", "is_active", "created_at", "updated_at",
}

func sampleCredRow() *sqlmock.Rows {
	return sqlmock.NewRows(credCols).
		AddRow("cred-1", "user-1", "github", "aa:bb:cc", nil,
			nil, "repo read:user", true, time.Now(), time.Now())
}

func emptyCredRow() *sqlmock.Rows {
	return sqlmock.NewRows(credCols)
}

func newCredRepo(t *testing.T) (*CredentialRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCredentialRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// Upsert
// ---------------------------------------------------------------------------

func TestCredentialUpsert_Insert(t *testing.T) {
	repo, mock := newCredRepo(t)
	mock.ExpectExec("INSERT INTO provider_credentials.*ON CONFLICT \\(user_id, provider\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))

	cred := &models.ProviderCredential{
		UserID:            "user-1",
		Provider:          provider.KindGitHub,
		AccessTokenSealed: "aa:bb:cc",
		Scopes:            "repo read:user",
		IsActive:          true,
	}
	if err := repo.Upsert(context.Background(), cred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.ID == "" {
		t.Error("expected generated ID")
	}
	if cred.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestCredentialUpsert_DBError(t *testing.T) {
	repo, mock := newCredRepo(t)
	mock.ExpectExec("INSERT INTO provider_credentials").
		WillReturnError(errDB)

	cred := &models.ProviderCredential{UserID: "user-1", Provider: provider.KindGitLab}
	if err := repo.Upsert(context.Background(), cred); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Get / GetUsable
// ---------------------------------------------------------------------------

func TestCredentialGet_Found(t *testing.T) {
	repo, mock := newCredRepo(t)
	mock.ExpectQuery("SELECT \\* FROM provider_credentials WHERE user_id").
		WithArgs("user-1", "github").
		WillReturnRows(sampleCredRow())

	cred, err := repo.Get(context.Background(), "user-1", provider.KindGitHub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred == nil {
		t.Fatal("expected credential, got nil")
	}
	if cred.AccessTokenSealed != "aa:bb:cc" {
		t.Errorf("AccessTokenSealed = %s", cred.AccessTokenSealed)
	}
}

func TestCredentialGet_NotFound(t *testing.T) {
	repo, mock := newCredRepo(t)
	mock.ExpectQuery("SELECT \\* FROM provider_credentials WHERE user_id").
		WithArgs("user-1", "bitbucket").
		WillReturnRows(emptyCredRow())

	cred, err := repo.Get(context.Background(), "user-1", provider.KindBitbucket)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred != nil {
		t.Errorf("expected nil credential, got %v", cred)
	}
}

func TestCredentialGetUsable_FiltersInactiveAndExpired(t *testing.T) {
	repo, mock := newCredRepo(t)
	mock.ExpectQuery("SELECT \\* FROM provider_credentials.*is_active = TRUE.*expires_at IS NULL OR expires_at > NOW").
		WithArgs("user-1", "github").
		WillReturnRows(emptyCredRow())

	cred, err := repo.GetUsable(context.Background(), "user-1", provider.KindGitHub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred != nil {
		t.Errorf("expected nil credential, got %v", cred)
	}
}

func TestCredentialGetUsable_Found(t *testing.T) {
	repo, mock := newCredRepo(t)
	mock.ExpectQuery("SELECT \\* FROM provider_credentials").
		WithArgs("user-1", "github").
		WillReturnRows(sampleCredRow())

	cred, err := repo.GetUsable(context.Background(), "user-1", provider.KindGitHub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred == nil {
		t.Fatal("expected credential, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListForUser / SetActive / DeactivateExpired
// ---------------------------------------------------------------------------

func TestCredentialListForUser(t *testing.T) {
	repo, mock := newCredRepo(t)
	rows := sqlmock.NewRows(credCols).
		AddRow("cred-1", "user-1", "github", "aa:bb:cc", nil, nil, "repo", true, time.Now(), time.Now()).
		AddRow("cred-2", "user-1", "gitlab", "dd:ee:ff", nil, nil, "read_repository", false, time.Now(), time.Now())
	mock.ExpectQuery("SELECT \\* FROM provider_credentials WHERE user_id").
		WithArgs("user-1").
		WillReturnRows(rows)

	creds, err := repo.ListForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("len(creds) = %d, want 2", len(creds))
	}
	if creds[1].Provider != provider.KindGitLab {
		t.Errorf("Provider = %s, want gitlab", creds[1].Provider)
	}
}

func TestCredentialSetActive(t *testing.T) {
	repo, mock := newCredRepo(t)
	mock.ExpectExec("UPDATE provider_credentials.*SET is_active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetActive(context.Background(), "user-1", provider.KindGitHub, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCredentialDeactivateExpired(t *testing.T) {
	repo, mock := newCredRepo(t)
	mock.ExpectExec("UPDATE provider_credentials.*expires_at <= NOW").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeactivateExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
}
