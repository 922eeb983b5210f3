// Package repos implements the repository listing endpoint backed by the
// user's connected Git providers.
package repos

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/api/connections"
	"github.com/docuforge/docuforge/internal/crypto"
	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/middleware"
	"github.com/docuforge/docuforge/internal/provider"
	"github.com/docuforge/docuforge/internal/telemetry"
)

// Handlers serves the repository listing endpoint.
type Handlers struct {
	conns    *connections.Handlers
	credRepo *repositories.CredentialRepository
	cipher   *crypto.EnvelopeCipher
}

// NewHandlers creates the repository listing handlers.
func NewHandlers(conns *connections.Handlers, credRepo *repositories.CredentialRepository, cipher *crypto.EnvelopeCipher) *Handlers {
	return &Handlers{
		conns:    conns,
		credRepo: credRepo,
		cipher:   cipher,
	}
}

// ListRepositories handles GET /api/:provider/repositories. It unseals the
// stored token, asks the provider for the user's repositories, and returns
// them normalized. An authorization failure from the provider deactivates the
// credential and tells the frontend to send the user back through OAuth with
// escalated scopes; it is never retried here.
func (h *Handlers) ListRepositories(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	kind := provider.Kind(c.Param("provider"))
	conn, configured := h.conns.Connector(kind)
	if !kind.Valid() || !configured {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown or unconfigured provider"})
		return
	}

	cred, err := h.credRepo.GetUsable(c.Request.Context(), userID, kind)
	if err != nil {
		slog.Error("failed to load provider credential", "provider", kind, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credentials"})
		return
	}
	if cred == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not connected"})
		return
	}

	accessToken, err := h.cipher.Open(cred.AccessTokenSealed)
	if err != nil {
		// A credential that no longer decrypts is useless; flag it so the
		// dashboard shows disconnected instead of failing every listing.
		slog.Error("failed to unseal provider credential", "provider", kind, "error", err)
		_ = h.credRepo.SetActive(c.Request.Context(), userID, kind, false)
		telemetry.RepositoryListingsTotal.WithLabelValues(kind.String(), "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read credentials"})
		return
	}

	token := &provider.AccessToken{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   cred.ExpiresAt,
		Scopes:      cred.ScopeList(),
	}

	repos, err := conn.ListRepositories(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, provider.ErrScopeInsufficient) || errors.Is(err, provider.ErrTokenInvalid) {
			h.requireReauthorization(c, userID, kind, conn, err)
			return
		}

		slog.Error("repository listing failed", "provider", kind, "error", err)
		telemetry.RepositoryListingsTotal.WithLabelValues(kind.String(), "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list repositories"})
		return
	}

	telemetry.RepositoryListingsTotal.WithLabelValues(kind.String(), "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"repositories": repos})
}

// requireReauthorization deactivates the credential and responds 403 with a
// fresh authorization URL carrying the provider's escalated scope set.
func (h *Handlers) requireReauthorization(c *gin.Context, userID string, kind provider.Kind, conn provider.Connector, cause error) {
	slog.Warn("provider rejected token, re-authorization required", "provider", kind, "error", cause)
	telemetry.RepositoryListingsTotal.WithLabelValues(kind.String(), "auth_error").Inc()

	if err := h.credRepo.SetActive(c.Request.Context(), userID, kind, false); err != nil {
		slog.Error("failed to deactivate rejected credential", "provider", kind, "error", err)
	}

	redirectURL, err := h.conns.AuthorizeURL(c.Request.Context(), userID, kind, conn.EscalatedScopes())
	if err != nil {
		slog.Error("failed to build re-authorization URL", "provider", kind, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start re-authorization"})
		return
	}

	c.JSON(http.StatusForbidden, gin.H{
		"error":       "token_refresh_required",
		"redirectUrl": redirectURL,
	})
}
