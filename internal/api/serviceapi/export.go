// Package serviceapi implements the service-to-service endpoint that hands a
// user's provider token to the documentation pipeline. The caller is the
// pipeline itself, never a browser: the endpoint is gated by a shared secret,
// not a user session.
package serviceapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/crypto"
	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/provider"
	"github.com/docuforge/docuforge/internal/telemetry"
)

// Handlers serves the credential export endpoint.
type Handlers struct {
	credRepo     *repositories.CredentialRepository
	cipher       *crypto.EnvelopeCipher
	sharedSecret string
}

// NewHandlers creates the credential export handlers. An empty shared secret
// disables the endpoint: every request fails authorization.
func NewHandlers(credRepo *repositories.CredentialRepository, cipher *crypto.EnvelopeCipher, sharedSecret string) *Handlers {
	return &Handlers{
		credRepo:     credRepo,
		cipher:       cipher,
		sharedSecret: sharedSecret,
	}
}

type exportRequest struct {
	UserID   string `json:"userId"`
	Provider string `json:"provider"`
}

// ExportCredential handles POST /api/repo-access. The decrypted token appears
// only in the response body; neither it nor the shared secret is ever logged.
func (h *Handlers) ExportCredential(c *gin.Context) {
	if !h.authorized(c.GetHeader("Authorization")) {
		telemetry.CredentialExportsTotal.WithLabelValues("unauthorized").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Provider == "" {
		telemetry.CredentialExportsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and provider are required"})
		return
	}

	kind := provider.Kind(req.Provider)
	if !kind.Valid() {
		telemetry.CredentialExportsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown provider"})
		return
	}

	cred, err := h.credRepo.GetUsable(c.Request.Context(), req.UserID, kind)
	if err != nil {
		slog.Error("credential export lookup failed", "provider", kind, "error", err)
		telemetry.CredentialExportsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if cred == nil {
		telemetry.CredentialExportsTotal.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "No valid credentials"})
		return
	}

	token, err := h.cipher.Open(cred.AccessTokenSealed)
	if err != nil {
		// A stored credential that fails decryption means key rotation went
		// wrong or the row was tampered with. Operators need to know.
		slog.Error("credential export decryption failed",
			"provider", kind,
			"user_id", req.UserID,
			"error", err,
		)
		telemetry.CredentialExportsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	telemetry.CredentialExportsTotal.WithLabelValues("ok").Inc()

	resp := gin.H{
		"token":  token,
		"scopes": cred.ScopeList(),
	}
	if cred.ExpiresAt != nil {
		resp["expiresAt"] = cred.ExpiresAt.UTC().Format(time.RFC3339)
	} else {
		resp["expiresAt"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

// authorized compares the presented bearer secret against the configured one
// in constant time.
func (h *Handlers) authorized(header string) bool {
	if h.sharedSecret == "" {
		return false
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.sharedSecret)) == 1
}
