// Package services implements higher-level business logic that coordinates
// across repositories and external systems. The bundle publisher, for example,
// orchestrates validating an uploaded documentation bundle, storing it in the
// configured storage backend, and recording the version in the database — a
// multi-step operation that spans several domain boundaries.
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docuforge/docuforge/internal/db/models"
	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/storage"
	"github.com/docuforge/docuforge/internal/telemetry"
	"github.com/docuforge/docuforge/internal/validation"
	"github.com/docuforge/docuforge/pkg/checksum"
)

// BundlePublisher stores documentation bundles and records project versions.
type BundlePublisher struct {
	projectRepo    *repositories.ProjectRepository
	storageBackend storage.Storage
	maxBundleSize  int64
}

// NewBundlePublisher creates a new bundle publisher.
func NewBundlePublisher(projectRepo *repositories.ProjectRepository, storageBackend storage.Storage) *BundlePublisher {
	return &BundlePublisher{
		projectRepo:    projectRepo,
		storageBackend: storageBackend,
		maxBundleSize:  validation.MaxArchiveSize,
	}
}

// PublishResult describes a completed publish.
type PublishResult struct {
	VersionID string
	Version   string
	Checksum  string
	BundleKey string
	Readme    string
}

// Publish validates the bundle, stores it, and appends a new version row.
// Version history is append-only: republishing an existing version label adds
// a new row rather than overwriting the old one.
func (p *BundlePublisher) Publish(ctx context.Context, projectID, versionLabel string, bundle io.Reader, size int64) (*PublishResult, error) {
	if err := validation.ValidateSemver(versionLabel); err != nil {
		return nil, fmt.Errorf("invalid version: %w", err)
	}

	project, err := p.projectRepo.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("project not found")
	}

	// The bundle is read three times (structure validation, checksum, upload),
	// so buffer it once. MaxArchiveSize keeps the buffer bounded.
	data, err := io.ReadAll(io.LimitReader(bundle, p.maxBundleSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	if int64(len(data)) > p.maxBundleSize {
		return nil, fmt.Errorf("bundle exceeds maximum size of %d bytes", p.maxBundleSize)
	}

	if err := validation.ValidateArchive(bytes.NewReader(data), p.maxBundleSize); err != nil {
		p.recordFailure(ctx, projectID, versionLabel)
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}

	// A missing README is not an error; the project page just has no
	// rendered description for this version.
	readme, _ := validation.ExtractReadme(bytes.NewReader(data))

	sum, err := checksum.CalculateSHA256(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compute checksum: %w", err)
	}

	bundleKey := fmt.Sprintf("bundles/%s/%s.tar.gz", projectID, versionLabel)
	if _, err := p.storageBackend.Upload(ctx, bundleKey, bytes.NewReader(data), int64(len(data))); err != nil {
		p.recordFailure(ctx, projectID, versionLabel)
		return nil, fmt.Errorf("failed to store bundle: %w", err)
	}

	version := &models.ProjectVersion{
		ProjectID:      projectID,
		Version:        versionLabel,
		Status:         models.VersionStatusPublished,
		BundleKey:      &bundleKey,
		BundleChecksum: &sum,
	}
	if err := p.projectRepo.AppendVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to record version: %w", err)
	}

	telemetry.BundlePublishesTotal.WithLabelValues(string(models.VersionStatusPublished)).Inc()

	return &PublishResult{
		VersionID: version.ID,
		Version:   version.Version,
		Checksum:  sum,
		BundleKey: bundleKey,
		Readme:    readme,
	}, nil
}

// BundleURL returns a time-limited download URL for a published version.
func (p *BundlePublisher) BundleURL(ctx context.Context, version *models.ProjectVersion, ttl time.Duration) (string, error) {
	if version.BundleKey == nil || *version.BundleKey == "" {
		return "", fmt.Errorf("version has no stored bundle")
	}
	return p.storageBackend.GetURL(ctx, *version.BundleKey, ttl)
}

// recordFailure appends a failed version row so the attempt is visible in the
// project's history.
func (p *BundlePublisher) recordFailure(ctx context.Context, projectID, versionLabel string) {
	version := &models.ProjectVersion{
		ProjectID: projectID,
		Version:   versionLabel,
		Status:    models.VersionStatusFailed,
	}
	_ = p.projectRepo.AppendVersion(ctx, version)
	telemetry.BundlePublishesTotal.WithLabelValues(string(models.VersionStatusFailed)).Inc()
}
