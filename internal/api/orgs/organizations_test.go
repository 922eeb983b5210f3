package orgs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var orgCols = []string{"id", "name", "slug", "created_at", "updated_at"}
var memberCols = []string{"organization_id", "user_id", "role", "created_at"}

func newOrgHandlers(t *testing.T) (*Handlers, *repositories.OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	orgRepo := repositories.NewOrganizationRepository(db)
	return NewHandlers(orgRepo), orgRepo, mock
}

func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// CreateOrganization
// ---------------------------------------------------------------------------

func TestCreateOrganization_Success(t *testing.T) {
	h, _, mock := newOrgHandlers(t)
	router := gin.New()
	router.POST("/api/organizations", asUser("u1"), h.CreateOrganization)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO organization_members").
		WithArgs(sqlmock.AnyArg(), "u1", models.RoleOwner, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := postJSON(router, "/api/organizations", map[string]string{"name": "ACME Docs Team"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	var org models.Organization
	if err := json.Unmarshal(w.Body.Bytes(), &org); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if org.Slug != "acme-docs-team" {
		t.Errorf("slug = %q, want derived slug", org.Slug)
	}
	if org.ID == "" {
		t.Error("expected generated organization ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateOrganization_SlugTaken(t *testing.T) {
	h, _, mock := newOrgHandlers(t)
	router := gin.New()
	router.POST("/api/organizations", asUser("u1"), h.CreateOrganization)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	w := postJSON(router, "/api/organizations", map[string]string{"name": "ACME Docs Team"})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestCreateOrganization_InvalidName(t *testing.T) {
	h, _, _ := newOrgHandlers(t)
	router := gin.New()
	router.POST("/api/organizations", asUser("u1"), h.CreateOrganization)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{}},
		{"no alphanumerics", map[string]string{"name": "!!! ***"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/api/organizations", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestCreateOrganization_Unauthenticated(t *testing.T) {
	h, _, _ := newOrgHandlers(t)
	router := gin.New()
	router.POST("/api/organizations", asUser(""), h.CreateOrganization)

	w := postJSON(router, "/api/organizations", map[string]string{"name": "ACME"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// ListOrganizations
// ---------------------------------------------------------------------------

func TestListOrganizations_EmptyIsNotNull(t *testing.T) {
	h, _, mock := newOrgHandlers(t)
	router := gin.New()
	router.GET("/api/organizations", asUser("u1"), h.ListOrganizations)

	mock.ExpectQuery("SELECT.*FROM organizations.*JOIN organization_members").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(orgCols))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/organizations", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != `{"organizations":[]}` {
		t.Errorf("body = %s, want empty array, not null", got)
	}
}

func TestListOrganizations(t *testing.T) {
	h, _, mock := newOrgHandlers(t)
	router := gin.New()
	router.GET("/api/organizations", asUser("u1"), h.ListOrganizations)

	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM organizations.*JOIN organization_members").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow("org-1", "ACME", "acme", now, now).
			AddRow("org-2", "Beta Corp", "beta-corp", now, now))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/organizations", nil))

	var resp struct {
		Organizations []models.Organization `json:"organizations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Organizations) != 2 || resp.Organizations[1].Slug != "beta-corp" {
		t.Errorf("organizations = %+v", resp.Organizations)
	}
}

// ---------------------------------------------------------------------------
// Org-scoped endpoints behind the role middleware
// ---------------------------------------------------------------------------

func newOrgScopedRouter(h *Handlers, orgRepo *repositories.OrganizationRepository, userID string) *gin.Engine {
	router := gin.New()
	scoped := router.Group("/api/organizations/:slug",
		asUser(userID), middleware.RequireOrgRole(orgRepo, models.RoleViewer))
	scoped.GET("", h.GetOrganization)
	scoped.GET("/members", h.ListMembers)
	return router
}

func expectOrgLookup(mock sqlmock.Sqlmock, slug string) {
	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE slug").
		WithArgs(slug).
		WillReturnRows(sqlmock.NewRows(orgCols).AddRow("org-1", "ACME", slug, now, now))
}

func TestGetOrganization_Member(t *testing.T) {
	h, orgRepo, mock := newOrgHandlers(t)
	router := newOrgScopedRouter(h, orgRepo, "u1")

	expectOrgLookup(mock, "acme")
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE organization_id").
		WithArgs("org-1", "u1").
		WillReturnRows(sqlmock.NewRows(memberCols).AddRow("org-1", "u1", "EDITOR", time.Now()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/organizations/acme", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Organization models.Organization `json:"organization"`
		Role         models.MemberRole   `json:"role"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Organization.Slug != "acme" || resp.Role != models.RoleEditor {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetOrganization_NonMember(t *testing.T) {
	h, orgRepo, mock := newOrgHandlers(t)
	router := newOrgScopedRouter(h, orgRepo, "outsider")

	expectOrgLookup(mock, "acme")
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE organization_id").
		WillReturnRows(sqlmock.NewRows(memberCols))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/organizations/acme", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestGetOrganization_NotFound(t *testing.T) {
	h, orgRepo, mock := newOrgHandlers(t)
	router := newOrgScopedRouter(h, orgRepo, "u1")

	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE slug").
		WillReturnRows(sqlmock.NewRows(orgCols))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/organizations/ghost", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListMembers(t *testing.T) {
	h, orgRepo, mock := newOrgHandlers(t)
	router := newOrgScopedRouter(h, orgRepo, "u1")

	expectOrgLookup(mock, "acme")
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE organization_id").
		WillReturnRows(sqlmock.NewRows(memberCols).AddRow("org-1", "u1", "OWNER", time.Now()))
	mock.ExpectQuery("SELECT.*FROM organization_members.*JOIN users").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"organization_id", "user_id", "role", "created_at", "name", "email"}).
			AddRow("org-1", "u1", "OWNER", time.Now(), "Dev One", "dev@example.com").
			AddRow("org-1", "u2", "VIEWER", time.Now(), "Dev Two", "dev2@example.com"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/organizations/acme/members", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Members []models.OrganizationMemberWithUser `json:"members"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Members) != 2 || resp.Members[0].Role != models.RoleOwner {
		t.Errorf("members = %+v", resp.Members)
	}
}
