// types.go declares the shared data structures used across the provider package:
// provider kinds, OAuth tokens, and the normalized repository shape returned to
// the dashboard regardless of which Git host produced it.
package provider

import (
	"fmt"
	"time"
)

// Kind identifies a supported Git hosting provider.
type Kind string

const (
	KindGitHub    Kind = "github"
	KindGitLab    Kind = "gitlab"
	KindBitbucket Kind = "bitbucket"
)

// Valid returns true if the provider kind is one we support.
func (k Kind) Valid() bool {
	switch k {
	case KindGitHub, KindGitLab, KindBitbucket:
		return true
	default:
		return false
	}
}

// String returns the string representation of the provider kind.
func (k Kind) String() string {
	return string(k)
}

// AccessToken represents an OAuth 2.0 access token as returned by a provider's
// token endpoint. Tokens are held in memory only; persistence always goes
// through the envelope cipher.
type AccessToken struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
}

// IsExpired checks if the token is expired. Tokens without an expiry never expire.
func (t *AccessToken) IsExpired() bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*t.ExpiresAt)
}

// Repository is the normalized repository shape served to the dashboard. The
// JSON field names are the contract the frontend renders; keep them stable.
type Repository struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Language      string    `json:"language"`
	SizeDisplay   string    `json:"size"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Stars         int       `json:"stars"`
	Visibility    string    `json:"visibility"`
	DefaultBranch string    `json:"branch"`
	WebURL        string    `json:"url"`
	CloneURL      string    `json:"cloneUrl"`
	Provider      Kind      `json:"provider"`
}

// FormatSize renders a repository size in kilobytes as the human string the
// dashboard displays: plain kilobytes below one megabyte, otherwise megabytes
// to one decimal place.
func FormatSize(sizeKB int) string {
	if sizeKB < 1024 {
		return fmt.Sprintf("%d KB", sizeKB)
	}
	return fmt.Sprintf("%.1f MB", float64(sizeKB)/1024)
}
