// Package users implements the current-user endpoint.
package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/db/models"
)

// Me handles GET /api/me and returns the authenticated user's profile as the
// auth middleware resolved it.
func Me(c *gin.Context) {
	userVal, exists := c.Get("user")
	user, ok := userVal.(*models.User)
	if !exists || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"auth_method": c.GetString("auth_method"),
	})
}
