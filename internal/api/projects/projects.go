// Package projects implements the project and version endpoints. A project
// tracks exactly one source repository; creation requests listing several keep
// only the first. Version history is append-only.
package projects

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/middleware"
	"github.com/docuforge/docuforge/internal/services"
)

// Handlers serves the project endpoints.
type Handlers struct {
	projectRepo *repositories.ProjectRepository
	orgRepo     *repositories.OrganizationRepository
	publisher   *services.BundlePublisher
}

// NewHandlers creates the project handlers.
func NewHandlers(projectRepo *repositories.ProjectRepository, orgRepo *repositories.OrganizationRepository, publisher *services.BundlePublisher) *Handlers {
	return &Handlers{
		projectRepo: projectRepo,
		orgRepo:     orgRepo,
		publisher:   publisher,
	}
}

type repositoryInput struct {
	URL           string `json:"url" binding:"required"`
	Provider      string `json:"provider"`
	DefaultBranch string `json:"defaultBranch"`
}

type createProjectRequest struct {
	OrganizationSlug string            `json:"organizationSlug" binding:"required"`
	Name             string            `json:"name" binding:"required"`
	Description      string            `json:"description"`
	Visibility       string            `json:"visibility"`
	Repositories     []repositoryInput `json:"repositories" binding:"required,min=1"`
}

// CreateProject handles POST /api/projects. Requires EDITOR or better in the
// target organization. Only the first listed repository is retained.
func (h *Handlers) CreateProject(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organizationSlug, name, and at least one repository are required"})
		return
	}

	org, err := h.orgRepo.GetBySlug(c.Request.Context(), req.OrganizationSlug)
	if err != nil {
		slog.Error("failed to look up organization", "slug", req.OrganizationSlug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up organization"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}

	member, err := h.orgRepo.GetMember(c.Request.Context(), org.ID, userID)
	if err != nil {
		slog.Error("failed to check membership", "organization_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
		return
	}
	if member == nil || !member.Role.AtLeast(models.RoleEditor) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Editor role required"})
		return
	}

	slug, err := models.DeriveSlug(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Project name must contain at least one letter or digit"})
		return
	}

	repo := req.Repositories[0]
	branch := repo.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = "private"
	}

	project := &models.Project{
		OrganizationID:     org.ID,
		Name:               req.Name,
		Slug:               slug,
		Description:        req.Description,
		RepositoryURL:      repo.URL,
		RepositoryProvider: repo.Provider,
		DefaultBranch:      branch,
		Visibility:         visibility,
	}

	if err := h.projectRepo.CreateProject(c.Request.Context(), project); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "A project with this name already exists in the organization"})
			return
		}
		slog.Error("failed to create project", "slug", slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	// Seed the version history so the project page has something to show
	// before the first real publish.
	initial := &models.ProjectVersion{
		ProjectID: project.ID,
		Version:   "0.1.0",
		Status:    models.VersionStatusPending,
	}
	if err := h.projectRepo.AppendVersion(c.Request.Context(), initial); err != nil {
		slog.Error("failed to record initial version", "project_id", project.ID, "error", err)
	}

	c.JSON(http.StatusCreated, project)
}

// GetProject handles GET /api/projects/:id. Requires membership in the
// project's organization.
func (h *Handlers) GetProject(c *gin.Context) {
	project, ok := h.authorizeProject(c, models.RoleViewer)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// ListOrganizationProjects handles GET /api/organizations/:slug/projects.
// The org-role middleware has already verified membership.
func (h *Handlers) ListOrganizationProjects(c *gin.Context) {
	orgVal, exists := c.Get("organization")
	org, ok := orgVal.(*models.Organization)
	if !exists || !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Organization context missing"})
		return
	}

	projects, err := h.projectRepo.ListOrganizationProjects(c.Request.Context(), org.ID)
	if err != nil {
		slog.Error("failed to list projects", "organization_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects"})
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// ListVersions handles GET /api/projects/:id/versions, newest first.
func (h *Handlers) ListVersions(c *gin.Context) {
	project, ok := h.authorizeProject(c, models.RoleViewer)
	if !ok {
		return
	}

	versions, err := h.projectRepo.ListVersions(c.Request.Context(), project.ID)
	if err != nil {
		slog.Error("failed to list versions", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list versions"})
		return
	}
	if versions == nil {
		versions = []*models.ProjectVersion{}
	}

	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// authorizeProject loads the project from the :id parameter and verifies the
// current user holds at least minRole in its organization. On failure it
// writes the response and returns ok=false.
func (h *Handlers) authorizeProject(c *gin.Context, minRole models.MemberRole) (*models.Project, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	project, err := h.projectRepo.GetProjectByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("failed to load project", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return nil, false
	}
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}

	member, err := h.orgRepo.GetMember(c.Request.Context(), project.OrganizationID, userID)
	if err != nil {
		slog.Error("failed to check membership", "organization_id", project.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
		return nil, false
	}
	if member == nil {
		// Membership is not disclosed to outsiders; the project simply does
		// not exist for them.
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}
	if !member.Role.AtLeast(minRole) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
		return nil, false
	}

	return project, true
}
