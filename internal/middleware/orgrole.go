// orgrole.go implements organization membership authorization.
//
// Roles are checked at request time rather than being embedded in the JWT.
// This is a deliberate design choice: when a user's role is changed, the
// change takes effect immediately on their next request without needing to
// invalidate or reissue their token.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/db/repositories"
)

// RequireOrgRole resolves the organization from the :slug route parameter and
// verifies the authenticated user holds at least minRole in it. On success the
// organization and membership are stored in the context under "organization"
// and "membership".
func RequireOrgRole(orgRepo *repositories.OrganizationRepository, minRole models.MemberRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "User not authenticated",
			})
			return
		}

		slug := c.Param("slug")
		if slug == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Organization slug is required",
			})
			return
		}

		org, err := orgRepo.GetBySlug(c.Request.Context(), slug)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load organization",
			})
			return
		}
		if org == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": "Organization not found",
			})
			return
		}

		member, err := orgRepo.GetMember(c.Request.Context(), org.ID, userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load membership",
			})
			return
		}
		if member == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Not a member of this organization",
			})
			return
		}

		if !member.Role.AtLeast(minRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role",
			})
			return
		}

		c.Set("organization", org)
		c.Set("membership", member)
		c.Next()
	}
}
