// Package models - project_version.go defines ProjectVersion, the append-only
// record of generated documentation snapshots. Rows are never updated or
// deleted; the latest version is the one with the greatest creation timestamp.
package models

import "time"

// Version statuses.
const (
	VersionStatusPending   = "pending"
	VersionStatusPublished = "published"
	VersionStatusFailed    = "failed"
)

// ProjectVersion represents one generated documentation snapshot. The bundle
// columns are nil for versions that never finished publishing.
type ProjectVersion struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Version        string    `json:"version"`
	Status         string    `json:"status"`
	BundleKey      *string   `json:"bundle_key,omitempty"`      // storage key of the doc bundle
	BundleChecksum *string   `json:"bundle_checksum,omitempty"` // sha256 of the stored bundle
	CreatedAt      time.Time `json:"created_at"`
}
