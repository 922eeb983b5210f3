// Package api wires together all HTTP routes for the DocuForge backend.
//
// Route grouping philosophy:
//   - The provider OAuth callback and the service-to-service credential export
//     are the only endpoints outside the session-auth group. The callback is
//     hit by a provider redirect that cannot carry an Authorization header and
//     protects itself with the single-use state nonce; the export endpoint is
//     gated by a shared service secret compared in constant time.
//   - Everything else under /api requires a valid session (first-party JWT or
//     OIDC ID token), and the organization-scoped routes additionally check
//     membership role at request time.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/docuforge/docuforge/internal/api/connections"
	"github.com/docuforge/docuforge/internal/api/orgs"
	"github.com/docuforge/docuforge/internal/api/projects"
	"github.com/docuforge/docuforge/internal/api/repos"
	"github.com/docuforge/docuforge/internal/api/serviceapi"
	"github.com/docuforge/docuforge/internal/api/users"
	"github.com/docuforge/docuforge/internal/auth/oidc"
	"github.com/docuforge/docuforge/internal/config"
	"github.com/docuforge/docuforge/internal/crypto"
	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/jobs"
	"github.com/docuforge/docuforge/internal/middleware"
	"github.com/docuforge/docuforge/internal/oauthstate"
	"github.com/docuforge/docuforge/internal/safego"
	"github.com/docuforge/docuforge/internal/services"
	"github.com/docuforge/docuforge/internal/storage"

	// Import storage backends to register them
	_ "github.com/docuforge/docuforge/internal/storage/azure"
	_ "github.com/docuforge/docuforge/internal/storage/gcs"
	_ "github.com/docuforge/docuforge/internal/storage/local"
	_ "github.com/docuforge/docuforge/internal/storage/s3"

	// Import provider connectors to register them via init()
	_ "github.com/docuforge/docuforge/internal/provider/bitbucket"
	_ "github.com/docuforge/docuforge/internal/provider/github"
	_ "github.com/docuforge/docuforge/internal/provider/gitlab"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	credentialSweep *jobs.CredentialSweep
	rateLimiters    []*middleware.RateLimiter
	redisClient     *redis.Client
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.credentialSweep != nil {
		bg.credentialSweep.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize storage backend
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	log.Printf("Initialized storage backend: %s", cfg.Storage.DefaultBackend)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	projectRepo := repositories.NewProjectRepository(db)

	// Wrap *sql.DB with sqlx for the credential repository
	sqlxDB := sqlx.NewDb(db, "postgres")
	credRepo := repositories.NewCredentialRepository(sqlxDB)

	// Initialize the envelope cipher for sealing provider tokens
	cipher, err := crypto.NewEnvelopeCipherFromHex(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to initialize envelope cipher: %v", err)
	}

	// Redis backs the OAuth state store and rate limiting when configured;
	// otherwise in-process fallbacks cover single-replica deployments.
	var redisClient *redis.Client
	var stateStore oauthstate.Store
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		stateStore = oauthstate.NewRedisStore(redisClient, oauthstate.DefaultTTL)
		log.Printf("Using redis at %s for OAuth state and rate limiting", cfg.Redis.Address)
	} else {
		stateStore = oauthstate.NewMemoryStore(oauthstate.DefaultTTL)
	}

	// Initialize the OIDC provider for session verification, if configured
	var oidcProvider *oidc.OIDCProvider
	if cfg.Auth.OIDC.Enabled {
		oidcProvider, err = oidc.NewOIDCProvider(&cfg.Auth.OIDC)
		if err != nil {
			log.Fatalf("Failed to initialize OIDC provider: %v", err)
		}
		log.Printf("OIDC provider initialized: %s", cfg.Auth.OIDC.IssuerURL)
	}

	// Start the credential expiry sweep
	credentialSweep := jobs.NewCredentialSweep(credRepo, cfg.Jobs.CredentialSweepInterval)
	safego.Go(func() { credentialSweep.Start(context.Background()) })

	// Initialize handlers
	connHandlers, err := connections.NewHandlers(cfg, stateStore, credRepo, userRepo, cipher)
	if err != nil {
		log.Fatalf("Failed to initialize provider connectors: %v", err)
	}
	repoHandlers := repos.NewHandlers(connHandlers, credRepo, cipher)
	exportHandlers := serviceapi.NewHandlers(credRepo, cipher, serviceToken(cfg))
	orgHandlers := orgs.NewHandlers(orgRepo)
	publisher := services.NewBundlePublisher(projectRepo, storageBackend)
	projectHandlers := projects.NewHandlers(projectRepo, orgRepo, publisher)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes storage backend probe)
	router.GET("/ready", readinessHandler(db, storageBackend))

	// API version
	router.GET("/version", versionHandler())

	// Rate limiting: redis-backed when redis is configured, in-memory
	// token buckets otherwise. The auth bucket is stricter than the general
	// one to slow down brute-force attempts on the connection endpoints.
	var authLimit, generalLimit gin.HandlerFunc
	var memLimiters []*middleware.RateLimiter
	if redisClient != nil {
		redisLimiter := middleware.NewRedisRateLimiter(redisClient)
		authLimit = middleware.RedisRateLimitMiddleware(redisLimiter, 10, 5)
		generalLimit = middleware.RedisRateLimitMiddleware(redisLimiter, 100, 20)
	} else {
		authLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
		generalLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
		memLimiters = []*middleware.RateLimiter{authLimiter, generalLimiter}
		authLimit = middleware.RateLimitMiddleware(authLimiter)
		generalLimit = middleware.RateLimitMiddleware(generalLimiter)
	}

	apiGroup := router.Group("/api")
	{
		// Provider OAuth callback: the provider redirects the browser here, so
		// there is no Authorization header. The single-use state nonce is the
		// protection.
		apiGroup.GET("/auth/:provider/callback", authLimit, connHandlers.Callback)

		// Service-to-service credential export, gated by the shared secret
		apiGroup.POST("/repo-access", generalLimit, exportHandlers.ExportCredential)

		// File serving endpoint for the local storage backend
		apiGroup.GET("/files/*filepath", generalLimit, serveFileHandler(storageBackend))

		// Session-authenticated endpoints
		authed := apiGroup.Group("")
		authed.Use(generalLimit)
		authed.Use(middleware.AuthMiddleware(userRepo, oidcProvider))
		{
			authed.GET("/me", users.Me)

			// Provider connections
			authed.GET("/auth/providers", connHandlers.ListConnections)
			authed.GET("/auth/:provider", authLimit, connHandlers.Initiate)
			authed.DELETE("/auth/:provider", connHandlers.Disconnect)

			// Repository listing per provider
			authed.GET("/:provider/repositories", repoHandlers.ListRepositories)

			// Organizations
			authed.POST("/organizations", orgHandlers.CreateOrganization)
			authed.GET("/organizations", orgHandlers.ListOrganizations)

			orgScoped := authed.Group("/organizations/:slug")
			orgScoped.Use(middleware.RequireOrgRole(orgRepo, models.RoleViewer))
			{
				orgScoped.GET("", orgHandlers.GetOrganization)
				orgScoped.GET("/members", orgHandlers.ListMembers)
				orgScoped.GET("/projects", projectHandlers.ListOrganizationProjects)
			}

			// Projects and versions
			authed.POST("/projects", projectHandlers.CreateProject)
			authed.GET("/projects/:id", projectHandlers.GetProject)
			authed.GET("/projects/:id/versions", projectHandlers.ListVersions)
			authed.POST("/projects/:id/versions", projectHandlers.UploadVersion)
			authed.GET("/projects/:id/versions/:version/download", projectHandlers.DownloadVersion)
		}
	}

	bg := &BackgroundServices{
		credentialSweep: credentialSweep,
		rateLimiters:    memLimiters,
		redisClient:     redisClient,
	}

	return router, bg
}

// serviceToken returns the shared secret the pipeline presents on the
// credential export endpoint. The value never appears in any log.
func serviceToken(cfg *config.Config) string {
	return cfg.ServiceAPI.Token
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the storage backend so
// that a Kubernetes readiness gate fails when uploads/downloads would error.
func readinessHandler(db *sql.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Check storage backend — probe with a known-absent sentinel path.
		// Exists() exercises authentication and network connectivity without
		// creating any state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// serveFileHandler streams objects from the storage backend. Only used when
// the local backend is active; cloud backends hand out signed URLs instead.
func serveFileHandler(storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Param("filepath"), "/")
		if path == "" || strings.Contains(path, "..") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path"})
			return
		}

		reader, err := storageBackend.Download(c.Request.Context(), path)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		defer reader.Close()

		c.Header("Content-Type", "application/gzip")
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, reader); err != nil {
			slog.Error("failed to stream file", "path", path, "error", err)
		}
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
