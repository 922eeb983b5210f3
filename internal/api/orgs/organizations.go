// Package orgs implements the organization endpoints. Creation is
// transactional: the organization row and the creator's OWNER membership are
// written together or not at all.
package orgs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/middleware"
)

// Handlers serves the organization endpoints.
type Handlers struct {
	orgRepo *repositories.OrganizationRepository
}

// NewHandlers creates the organization handlers.
func NewHandlers(orgRepo *repositories.OrganizationRepository) *Handlers {
	return &Handlers{orgRepo: orgRepo}
}

type createOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateOrganization handles POST /api/organizations. The slug is derived
// from the name, never client-supplied.
func (h *Handlers) CreateOrganization(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	slug, err := models.DeriveSlug(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Organization name must contain at least one letter or digit"})
		return
	}

	org := &models.Organization{
		Name: req.Name,
		Slug: slug,
	}

	if err := h.orgRepo.CreateWithOwner(c.Request.Context(), org, userID); err != nil {
		if errors.Is(err, repositories.ErrSlugTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "An organization with this name already exists"})
			return
		}
		slog.Error("failed to create organization", "slug", slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
		return
	}

	c.JSON(http.StatusCreated, org)
}

// ListOrganizations handles GET /api/organizations and returns the
// organizations the current user is a member of.
func (h *Handlers) ListOrganizations(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	orgs, err := h.orgRepo.ListUserOrganizations(c.Request.Context(), userID)
	if err != nil {
		slog.Error("failed to list organizations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list organizations"})
		return
	}
	if orgs == nil {
		orgs = []*models.Organization{}
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// GetOrganization handles GET /api/organizations/:slug. The org-role
// middleware has already verified membership and stored the organization.
func (h *Handlers) GetOrganization(c *gin.Context) {
	org, member, ok := orgFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Organization context missing"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization": org,
		"role":         member.Role,
	})
}

// ListMembers handles GET /api/organizations/:slug/members.
func (h *Handlers) ListMembers(c *gin.Context) {
	org, _, ok := orgFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Organization context missing"})
		return
	}

	members, err := h.orgRepo.ListMembersWithUsers(c.Request.Context(), org.ID)
	if err != nil {
		slog.Error("failed to list members", "organization_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
		return
	}
	if members == nil {
		members = []*models.OrganizationMemberWithUser{}
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// orgFromContext reads what the org-role middleware stored.
func orgFromContext(c *gin.Context) (*models.Organization, *models.OrganizationMember, bool) {
	orgVal, exists := c.Get("organization")
	if !exists {
		return nil, nil, false
	}
	org, ok := orgVal.(*models.Organization)
	if !ok {
		return nil, nil, false
	}

	memberVal, exists := c.Get("membership")
	if !exists {
		return org, nil, false
	}
	member, ok := memberVal.(*models.OrganizationMember)
	if !ok {
		return org, nil, false
	}

	return org, member, true
}
