// project_repository.go implements ProjectRepository, providing database
// queries for projects and their append-only version history. Versions are
// insert-only by construction: the repository exposes no update or delete for
// project_versions.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuforge/docuforge/internal/db/models"
)

// ProjectRepository handles database operations for projects and versions
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateProject creates a new project
func (r *ProjectRepository) CreateProject(ctx context.Context, project *models.Project) error {
	project.ID = uuid.New().String()
	project.CreatedAt = time.Now()
	project.UpdatedAt = time.Now()

	query := `
		INSERT INTO projects (
			id, organization_id, name, slug, description, repository_url,
			repository_provider, default_branch, visibility, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.OrganizationID, project.Name, project.Slug,
		project.Description, project.RepositoryURL, project.RepositoryProvider,
		project.DefaultBranch, project.Visibility, project.CreatedAt, project.UpdatedAt,
	)
	return err
}

// GetProjectByID retrieves a project by ID
func (r *ProjectRepository) GetProjectByID(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, organization_id, name, slug, description, repository_url,
		       repository_provider, default_branch, visibility, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	project := &models.Project{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.OrganizationID, &project.Name, &project.Slug,
		&project.Description, &project.RepositoryURL, &project.RepositoryProvider,
		&project.DefaultBranch, &project.Visibility, &project.CreatedAt, &project.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return project, nil
}

// ListOrganizationProjects returns all projects in an organization
func (r *ProjectRepository) ListOrganizationProjects(ctx context.Context, orgID string) ([]*models.Project, error) {
	query := `
		SELECT id, organization_id, name, slug, description, repository_url,
		       repository_provider, default_branch, visibility, created_at, updated_at
		FROM projects
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project := &models.Project{}
		if err := rows.Scan(
			&project.ID, &project.OrganizationID, &project.Name, &project.Slug,
			&project.Description, &project.RepositoryURL, &project.RepositoryProvider,
			&project.DefaultBranch, &project.Visibility, &project.CreatedAt, &project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// AppendVersion inserts a new version row. Versions are never updated or
// deleted; history only grows.
func (r *ProjectRepository) AppendVersion(ctx context.Context, version *models.ProjectVersion) error {
	version.ID = uuid.New().String()
	version.CreatedAt = time.Now()

	query := `
		INSERT INTO project_versions (id, project_id, version, status, bundle_key, bundle_checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		version.ID, version.ProjectID, version.Version, version.Status,
		version.BundleKey, version.BundleChecksum, version.CreatedAt,
	)
	return err
}

// ListVersions returns a project's versions, newest first
func (r *ProjectRepository) ListVersions(ctx context.Context, projectID string) ([]*models.ProjectVersion, error) {
	query := `
		SELECT id, project_id, version, status, bundle_key, bundle_checksum, created_at
		FROM project_versions
		WHERE project_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.ProjectVersion
	for rows.Next() {
		version := &models.ProjectVersion{}
		if err := rows.Scan(
			&version.ID, &version.ProjectID, &version.Version, &version.Status,
			&version.BundleKey, &version.BundleChecksum, &version.CreatedAt,
		); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	return versions, rows.Err()
}

// GetVersion retrieves one version of a project by its version label
func (r *ProjectRepository) GetVersion(ctx context.Context, projectID, versionLabel string) (*models.ProjectVersion, error) {
	query := `
		SELECT id, project_id, version, status, bundle_key, bundle_checksum, created_at
		FROM project_versions
		WHERE project_id = $1 AND version = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	version := &models.ProjectVersion{}
	err := r.db.QueryRowContext(ctx, query, projectID, versionLabel).Scan(
		&version.ID, &version.ProjectID, &version.Version, &version.Status,
		&version.BundleKey, &version.BundleChecksum, &version.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return version, nil
}

// GetLatestVersion returns the version with the greatest creation timestamp
func (r *ProjectRepository) GetLatestVersion(ctx context.Context, projectID string) (*models.ProjectVersion, error) {
	query := `
		SELECT id, project_id, version, status, bundle_key, bundle_checksum, created_at
		FROM project_versions
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	version := &models.ProjectVersion{}
	err := r.db.QueryRowContext(ctx, query, projectID).Scan(
		&version.ID, &version.ProjectID, &version.Version, &version.Status,
		&version.BundleKey, &version.BundleChecksum, &version.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return version, nil
}
