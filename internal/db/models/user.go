// Package models - user.go defines the User model for dashboard accounts.
// Users are created lazily: the first authenticated action by an external
// identity that has no row yet inserts one, so there is exactly one User per
// external auth identity.
package models

import "time"

// User represents a user in the system
type User struct {
	ID             string    `json:"id"`
	AuthIdentityID string    `json:"auth_identity_id"` // external identity subject, unique
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
