// Package models - provider_credential.go defines ProviderCredential, the one
// credential entity per (user, provider) pair. Both the dashboard connection
// view and the pipeline export view are projections over this single record;
// there is deliberately no second credential table.
package models

import (
	"strings"
	"time"

	"github.com/docuforge/docuforge/internal/provider"
)

// ProviderCredential holds a user's OAuth token for one Git provider. Token
// fields are sealed envelopes; plaintext tokens never touch this struct.
type ProviderCredential struct {
	ID                 string        `db:"id" json:"id"`
	UserID             string        `db:"user_id" json:"user_id"`
	Provider           provider.Kind `db:"provider" json:"provider"`
	AccessTokenSealed  string        `db:"access_token_sealed" json:"-"`
	RefreshTokenSealed *string       `db:"refresh_token_sealed" json:"-"`
	ExpiresAt          *time.Time    `db:"expires_at" json:"expires_at,omitempty"`
	Scopes             string        `db:"scopes" json:"-"` // space-joined
	IsActive           bool          `db:"is_active" json:"is_active"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// ScopeList splits the stored scope string back into its parts.
func (c *ProviderCredential) ScopeList() []string {
	if c.Scopes == "" {
		return []string{}
	}
	return strings.Fields(c.Scopes)
}

// Usable reports whether the credential may be used against the provider:
// active and not past its expiry. Credentials without an expiry never expire.
func (c *ProviderCredential) Usable() bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt == nil {
		return true
	}
	return time.Now().Before(*c.ExpiresAt)
}

// ConnectionView is the dashboard-facing projection of a credential: it shows
// connection status and grants but never any token material.
type ConnectionView struct {
	Provider  provider.Kind `json:"provider"`
	Connected bool          `json:"connected"`
	IsActive  bool          `json:"is_active"`
	Scopes    []string      `json:"scopes"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

// ConnectionView builds the dashboard projection for this credential.
func (c *ProviderCredential) ConnectionView() ConnectionView {
	return ConnectionView{
		Provider:  c.Provider,
		Connected: c.Usable(),
		IsActive:  c.IsActive,
		Scopes:    c.ScopeList(),
		ExpiresAt: c.ExpiresAt,
	}
}
