// Package models - project.go defines the Project model. A project belongs to
// exactly one organization and tracks exactly one source repository; when a
// creation request carries several repositories only the first is retained.
// Multi-repository projects are a possible future extension, not a current one.
package models

import "time"

// Project represents a documentation project
type Project struct {
	ID                 string    `json:"id"`
	OrganizationID     string    `json:"organization_id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"` // unique within the organization
	Description        string    `json:"description"`
	RepositoryURL      string    `json:"repository_url"`
	RepositoryProvider string    `json:"repository_provider"`
	DefaultBranch      string    `json:"default_branch"`
	Visibility         string    `json:"visibility"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
