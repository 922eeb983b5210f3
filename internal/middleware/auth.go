// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, and security headers.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → OrgRole → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the user identity; the org-role middleware reads from that
// context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/auth"
	"github.com/docuforge/docuforge/internal/auth/oidc"
	"github.com/docuforge/docuforge/internal/db/repositories"
)

// AuthMiddleware validates a session. A bearer token is tried as a session JWT
// first (stateless, no DB round-trip); if that fails and an OIDC provider is
// configured, it is tried as a raw ID token, in which case the user row is
// created lazily from the verified identity.
func AuthMiddleware(userRepo *repositories.UserRepository, oidcProvider *oidc.OIDCProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		// Session JWT first: it requires only a cryptographic check against
		// the signing secret, no database round-trip.
		if claims, err := auth.ValidateJWT(token); err == nil {
			user, err := userRepo.GetUserByID(c.Request.Context(), claims.UserID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to load user",
				})
				return
			}
			if user == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "User not found",
				})
				return
			}

			c.Set("user", user)
			c.Set("user_id", user.ID)
			c.Set("auth_method", "jwt")
			c.Next()
			return
		}

		// Fall back to a raw OIDC ID token. First sight of a verified
		// identity creates the user row.
		if oidcProvider != nil {
			idToken, err := oidcProvider.VerifyIDToken(c.Request.Context(), token)
			if err == nil {
				sub, email, name, err := oidcProvider.ExtractUserInfo(idToken)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
						"error": "Invalid identity token",
					})
					return
				}

				user, err := userRepo.GetOrCreateFromIdentity(c.Request.Context(), sub, email, name)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "Failed to resolve user",
					})
					return
				}

				c.Set("user", user)
				c.Set("user_id", user.ID)
				c.Set("auth_method", "oidc")
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid or expired token",
		})
	}
}

// CurrentUserID returns the authenticated user's ID from the request context.
// The second return is false when AuthMiddleware did not run or rejected the
// request.
func CurrentUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
