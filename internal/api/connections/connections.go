// Package connections implements the OAuth provider-connection endpoints: flow
// initiation, the provider callback, the dashboard connections view, and
// disconnection.
//
// The callback is the one browser-facing endpoint that cannot carry an
// Authorization header (the provider redirects to it directly), so the state
// parameter sent to the provider is "<userID>.<nonce>". The nonce half is the
// single-use value held by the state store; the userID half lets the callback
// find the session to consume. Tampering with either half fails the atomic
// check-and-delete.
package connections

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/config"
	"github.com/docuforge/docuforge/internal/crypto"
	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/middleware"
	"github.com/docuforge/docuforge/internal/oauthstate"
	"github.com/docuforge/docuforge/internal/provider"
	"github.com/docuforge/docuforge/internal/telemetry"
)

// Callback error codes surfaced to the browser. The raw provider error is
// logged server-side and never included in the redirect.
const (
	errInvalidCallback = "invalid_callback"
	errSession         = "session_error"
	errToken           = "token_error"
	errServer          = "server_error"
)

// Handlers serves the provider connection endpoints.
type Handlers struct {
	connectors  map[provider.Kind]provider.Connector
	states      oauthstate.Store
	credRepo    *repositories.CredentialRepository
	userRepo    *repositories.UserRepository
	cipher      *crypto.EnvelopeCipher
	frontendURL string
}

// NewHandlers builds a connector for every provider enabled in configuration
// and wires them to the connection endpoints.
func NewHandlers(
	cfg *config.Config,
	states oauthstate.Store,
	credRepo *repositories.CredentialRepository,
	userRepo *repositories.UserRepository,
	cipher *crypto.EnvelopeCipher,
) (*Handlers, error) {
	connectors := make(map[provider.Kind]provider.Connector)

	for kind, appCfg := range map[provider.Kind]config.ProviderAppConfig{
		provider.KindGitHub:    cfg.Providers.GitHub,
		provider.KindGitLab:    cfg.Providers.GitLab,
		provider.KindBitbucket: cfg.Providers.Bitbucket,
	} {
		if !appCfg.Enabled {
			continue
		}
		conn, err := provider.BuildConnector(&provider.ConnectorSettings{
			Kind:            kind,
			ClientID:        appCfg.ClientID,
			ClientSecret:    appCfg.ClientSecret,
			CallbackURL:     cfg.Server.GetPublicURL() + "/api/auth/" + kind.String() + "/callback",
			InstanceBaseURL: appCfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		connectors[kind] = conn
	}

	return &Handlers{
		connectors:  connectors,
		states:      states,
		credRepo:    credRepo,
		userRepo:    userRepo,
		cipher:      cipher,
		frontendURL: cfg.Server.GetFrontendURL(),
	}, nil
}

// Connector returns the configured connector for a provider kind.
func (h *Handlers) Connector(kind provider.Kind) (provider.Connector, bool) {
	conn, ok := h.connectors[kind]
	return conn, ok
}

// sessionKey scopes a pending state to one user and one provider, so starting
// a GitLab flow does not invalidate a pending GitHub one.
func sessionKey(userID string, kind provider.Kind) string {
	return userID + "/" + kind.String()
}

// AuthorizeURL issues a fresh single-use state nonce for the user and returns
// the provider's authorization URL requesting the given scopes. Empty scopes
// means the connector's default scope set.
func (h *Handlers) AuthorizeURL(ctx context.Context, userID string, kind provider.Kind, scopes []string) (string, error) {
	conn, configured := h.connectors[kind]
	if !configured {
		return "", provider.ErrConnectorUnavailable
	}

	nonce, err := h.states.Issue(ctx, sessionKey(userID, kind))
	if err != nil {
		return "", err
	}

	return conn.AuthorizationURL(userID+"."+nonce, scopes), nil
}

// Initiate handles GET /api/auth/:provider. It issues a single-use state nonce
// and returns the provider's authorization URL for the frontend to navigate to.
func (h *Handlers) Initiate(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	kind := provider.Kind(c.Param("provider"))
	if _, configured := h.connectors[kind]; !kind.Valid() || !configured {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown or unconfigured provider"})
		return
	}

	var scopes []string
	if raw := c.Query("scopes"); raw != "" {
		scopes = strings.Fields(raw)
	}

	authURL, err := h.AuthorizeURL(c.Request.Context(), userID, kind, scopes)
	if err != nil {
		slog.Error("failed to issue oauth state", "provider", kind, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start connection flow"})
		return
	}

	if c.Query("redirect") == "true" {
		c.Redirect(http.StatusFound, authURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": authURL})
}

// Callback handles GET /api/auth/:provider/callback. Every failure redirects
// to the frontend with a machine-readable error code; the provider's own error
// text stays in the server log.
func (h *Handlers) Callback(c *gin.Context) {
	kind := provider.Kind(c.Param("provider"))
	conn, configured := h.connectors[kind]
	if !kind.Valid() || !configured {
		h.redirectError(c, kind, errInvalidCallback)
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		h.redirectError(c, kind, errInvalidCallback)
		return
	}

	userID, nonce, found := strings.Cut(state, ".")
	if !found || userID == "" {
		h.redirectError(c, kind, errInvalidCallback)
		return
	}

	// Single use: a replayed or concurrent second callback fails here.
	if err := h.states.Consume(c.Request.Context(), sessionKey(userID, kind), nonce); err != nil {
		slog.Warn("oauth state rejected", "provider", kind, "error", err)
		h.redirectError(c, kind, errInvalidCallback)
		return
	}

	user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		slog.Error("oauth callback user lookup failed", "provider", kind, "error", err)
		h.redirectError(c, kind, errSession)
		return
	}

	token, err := conn.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		slog.Error("oauth code exchange failed", "provider", kind, "error", err)
		h.redirectError(c, kind, errToken)
		return
	}

	cred, err := h.sealCredential(user.ID, kind, token)
	if err != nil {
		slog.Error("failed to seal provider token", "provider", kind, "error", err)
		h.redirectError(c, kind, errServer)
		return
	}

	if err := h.credRepo.Upsert(c.Request.Context(), cred); err != nil {
		slog.Error("failed to store provider credential", "provider", kind, "error", err)
		h.redirectError(c, kind, errServer)
		return
	}

	telemetry.OAuthConnectionsTotal.WithLabelValues(kind.String(), "connected").Inc()
	slog.Info("provider connected", "provider", kind, "user_id", user.ID)
	c.Redirect(http.StatusFound, h.frontendURL+"/settings/connections?connected="+kind.String())
}

// sealCredential envelopes the token material for storage. Plaintext tokens
// exist only inside this call.
func (h *Handlers) sealCredential(userID string, kind provider.Kind, token *provider.AccessToken) (*models.ProviderCredential, error) {
	sealed, err := h.cipher.Seal(token.AccessToken)
	if err != nil {
		return nil, err
	}

	cred := &models.ProviderCredential{
		UserID:            userID,
		Provider:          kind,
		AccessTokenSealed: sealed,
		ExpiresAt:         token.ExpiresAt,
		Scopes:            strings.Join(token.Scopes, " "),
		IsActive:          true,
	}

	if token.RefreshToken != "" {
		sealedRefresh, err := h.cipher.Seal(token.RefreshToken)
		if err != nil {
			return nil, err
		}
		cred.RefreshTokenSealed = &sealedRefresh
	}

	return cred, nil
}

func (h *Handlers) redirectError(c *gin.Context, kind provider.Kind, code string) {
	telemetry.OAuthConnectionsTotal.WithLabelValues(kind.String(), code).Inc()
	c.Redirect(http.StatusFound, h.frontendURL+"/settings/connections?error="+code)
}

// ListConnections handles GET /api/auth/providers. Every configured provider
// appears in the response, connected or not, so the dashboard can render one
// row per provider without merging.
func (h *Handlers) ListConnections(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	creds, err := h.credRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		slog.Error("failed to list provider credentials", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list connections"})
		return
	}

	byProvider := make(map[provider.Kind]models.ConnectionView, len(creds))
	for _, cred := range creds {
		byProvider[cred.Provider] = cred.ConnectionView()
	}

	views := make([]models.ConnectionView, 0, len(h.connectors))
	for _, kind := range []provider.Kind{provider.KindGitHub, provider.KindGitLab, provider.KindBitbucket} {
		if _, configured := h.connectors[kind]; !configured {
			continue
		}
		if view, connected := byProvider[kind]; connected {
			views = append(views, view)
			continue
		}
		views = append(views, models.ConnectionView{
			Provider: kind,
			Scopes:   []string{},
		})
	}

	c.JSON(http.StatusOK, gin.H{"providers": views})
}

// Disconnect handles DELETE /api/auth/:provider. The credential row stays (a
// reconnect reuses it); only the active flag flips.
func (h *Handlers) Disconnect(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	kind := provider.Kind(c.Param("provider"))
	if !kind.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown provider"})
		return
	}

	if err := h.credRepo.SetActive(c.Request.Context(), userID, kind, false); err != nil {
		slog.Error("failed to deactivate provider credential", "provider", kind, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect provider"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"disconnected": kind})
}
