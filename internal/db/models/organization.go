// Package models - organization.go defines the Organization model representing
// a tenant namespace in the dashboard, addressed by a globally unique slug
// derived from its display name.
package models

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptySlug is returned when an organization name contains no alphanumeric
// characters at all, so no slug can be derived from it.
var ErrEmptySlug = errors.New("organization name yields an empty slug")

// Organization represents an organization in the dashboard
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"` // Human-readable display name
	Slug      string    `json:"slug"` // URL-safe identifier, globally unique
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveSlug converts an organization name into its URL slug: lowercase, runs
// of non-alphanumeric characters collapsed to single hyphens, leading and
// trailing hyphens stripped. Names that strip down to nothing are rejected.
func DeriveSlug(name string) (string, error) {
	lowered := strings.ToLower(name)

	var b strings.Builder
	pendingHyphen := false
	for _, r := range lowered {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}

	slug := b.String()
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}
