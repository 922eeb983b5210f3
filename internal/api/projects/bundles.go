// bundles.go implements documentation bundle upload and download for project
// versions. Uploads go through the bundle publisher, which validates the
// archive and appends the version row; downloads redirect to a time-limited
// storage URL rather than proxying bytes through the API server.
package projects

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/db/models"
)

// downloadURLTTL bounds how long an issued bundle download link stays valid.
const downloadURLTTL = 15 * time.Minute

// UploadVersion handles POST /api/projects/:id/versions. Multipart form with
// fields "version" and "bundle" (a tar.gz archive). Requires EDITOR or better.
func (h *Handlers) UploadVersion(c *gin.Context) {
	project, ok := h.authorizeProject(c, models.RoleEditor)
	if !ok {
		return
	}

	versionLabel := c.PostForm("version")
	if versionLabel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}

	fileHeader, err := c.FormFile("bundle")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bundle file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error("failed to open uploaded bundle", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	result, err := h.publisher.Publish(c.Request.Context(), project.ID, versionLabel, file, fileHeader.Size)
	if err != nil {
		slog.Error("bundle publish failed", "project_id", project.ID, "version", versionLabel, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       result.VersionID,
		"version":  result.Version,
		"status":   models.VersionStatusPublished,
		"checksum": result.Checksum,
	})
}

// DownloadVersion handles GET /api/projects/:id/versions/:version/download.
// Responds with a redirect to a signed storage URL.
func (h *Handlers) DownloadVersion(c *gin.Context) {
	project, ok := h.authorizeProject(c, models.RoleViewer)
	if !ok {
		return
	}

	version, err := h.projectRepo.GetVersion(c.Request.Context(), project.ID, c.Param("version"))
	if err != nil {
		slog.Error("failed to load version", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load version"})
		return
	}
	if version == nil || version.Status != models.VersionStatusPublished {
		c.JSON(http.StatusNotFound, gin.H{"error": "Version not found"})
		return
	}

	url, err := h.publisher.BundleURL(c.Request.Context(), version, downloadURLTTL)
	if err != nil {
		slog.Error("failed to build bundle URL", "project_id", project.ID, "version", version.Version, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build download URL"})
		return
	}

	c.Redirect(http.StatusFound, url)
}
