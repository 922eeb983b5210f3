package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/docuforge/docuforge/internal/db/models"
)

var orgCols = []string{"id", "name", "slug", "created_at", "updated_at"}

var memberCols = []string{"organization_id", "user_id", "role", "created_at"}

func sampleOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols).
		AddRow("org-1", "Acme Corp", "acme-corp", time.Now(), time.Now())
}

func emptyOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols)
}

func newOrgRepo(t *testing.T) (*OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewOrganizationRepository(db), mock
}

// ---------------------------------------------------------------------------
// CreateWithOwner
// ---------------------------------------------------------------------------

func TestCreateWithOwner_Success(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO organization_members").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	org := &models.Organization{Name: "Acme Corp", Slug: "acme-corp"}
	if err := repo.CreateWithOwner(context.Background(), org, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.ID == "" {
		t.Error("expected generated ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateWithOwner_SlugTaken(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	org := &models.Organization{Name: "Acme Corp", Slug: "acme-corp"}
	err := repo.CreateWithOwner(context.Background(), org, "user-1")
	if !errors.Is(err, ErrSlugTaken) {
		t.Errorf("error = %v, want ErrSlugTaken", err)
	}
}

func TestCreateWithOwner_MemberInsertFails(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO organization_members").
		WillReturnError(errDB)
	mock.ExpectRollback()

	org := &models.Organization{Name: "Acme Corp", Slug: "acme-corp"}
	if err := repo.CreateWithOwner(context.Background(), org, "user-1"); err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetBySlug / GetByID
// ---------------------------------------------------------------------------

func TestGetBySlug_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE slug").
		WithArgs("acme-corp").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetBySlug(context.Background(), "acme-corp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected organization, got nil")
	}
	if org.Slug != "acme-corp" {
		t.Errorf("Slug = %s, want acme-corp", org.Slug)
	}
}

func TestGetBySlug_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE slug").
		WithArgs("missing").
		WillReturnRows(emptyOrgRow())

	org, err := repo.GetBySlug(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org != nil {
		t.Errorf("expected nil organization, got %v", org)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE id").
		WithArgs("org-1").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByID(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil || org.ID != "org-1" {
		t.Fatalf("org = %v, want org-1", org)
	}
}

// ---------------------------------------------------------------------------
// Membership
// ---------------------------------------------------------------------------

func TestListUserOrganizations(t *testing.T) {
	repo, mock := newOrgRepo(t)
	rows := sqlmock.NewRows(orgCols).
		AddRow("org-1", "Acme Corp", "acme-corp", time.Now(), time.Now()).
		AddRow("org-2", "Beta Inc", "beta-inc", time.Now(), time.Now())
	mock.ExpectQuery("SELECT.*FROM organizations o.*JOIN organization_members").
		WithArgs("user-1").
		WillReturnRows(rows)

	orgs, err := repo.ListUserOrganizations(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orgs) != 2 {
		t.Errorf("len(orgs) = %d, want 2", len(orgs))
	}
}

func TestGetMember_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	rows := sqlmock.NewRows(memberCols).
		AddRow("org-1", "user-1", "OWNER", time.Now())
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE organization_id").
		WithArgs("org-1", "user-1").
		WillReturnRows(rows)

	member, err := repo.GetMember(context.Background(), "org-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if member == nil {
		t.Fatal("expected member, got nil")
	}
	if member.Role != models.RoleOwner {
		t.Errorf("Role = %s, want OWNER", member.Role)
	}
}

func TestGetMember_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE organization_id").
		WithArgs("org-1", "stranger").
		WillReturnRows(sqlmock.NewRows(memberCols))

	member, err := repo.GetMember(context.Background(), "org-1", "stranger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if member != nil {
		t.Errorf("expected nil member, got %v", member)
	}
}

func TestAddMember(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("INSERT INTO organization_members").
		WillReturnResult(sqlmock.NewResult(1, 1))

	member := &models.OrganizationMember{OrganizationID: "org-1", UserID: "user-2", Role: models.RoleEditor}
	if err := repo.AddMember(context.Background(), member); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRemoveMember(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("DELETE FROM organization_members").
		WithArgs("org-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveMember(context.Background(), "org-1", "user-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListMembersWithUsers(t *testing.T) {
	repo, mock := newOrgRepo(t)
	cols := []string{"organization_id", "user_id", "role", "created_at", "name", "email"}
	rows := sqlmock.NewRows(cols).
		AddRow("org-1", "user-1", "OWNER", time.Now(), "Alice", "alice@example.com").
		AddRow("org-1", "user-2", "VIEWER", time.Now(), "Bob", "bob@example.com")
	mock.ExpectQuery("SELECT.*FROM organization_members m.*JOIN users").
		WithArgs("org-1").
		WillReturnRows(rows)

	members, err := repo.ListMembersWithUsers(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len(members) = %d, want 2", len(members))
	}
	if members[0].UserName != "Alice" {
		t.Errorf("UserName = %s, want Alice", members[0].UserName)
	}
}
