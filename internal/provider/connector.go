// Package provider defines the Git hosting provider interface and the registry
// for instantiating provider implementations. Supported providers are GitHub,
// GitLab, and Bitbucket Cloud. New providers are added by implementing the
// Connector interface and registering in an init function — no changes to the
// registry logic are required.
package provider

import "context"

// Connector defines the operations the service performs against a Git host on
// behalf of a connected user.
type Connector interface {
	// Platform returns the provider kind
	Platform() Kind

	// AuthorizationURL returns the URL to redirect users to for OAuth consent
	AuthorizationURL(stateParam string, requestedScopes []string) string

	// ExchangeCode exchanges an authorization code for tokens
	ExchangeCode(ctx context.Context, authCode string) (*AccessToken, error)

	// ListRepositories returns up to 100 of the most recently updated
	// repositories the token can reach, in normalized form
	ListRepositories(ctx context.Context, creds *AccessToken) ([]*Repository, error)

	// EscalatedScopes returns the widened scope set to request when the
	// provider reports the current token's grants are insufficient
	EscalatedScopes() []string
}

// ConnectorSettings holds configuration for creating a connector.
type ConnectorSettings struct {
	Kind         Kind
	ClientID     string
	ClientSecret string
	CallbackURL  string

	// InstanceBaseURL overrides the provider's public endpoints. Used for
	// self-hosted instances and for pointing tests at fake servers.
	InstanceBaseURL string
}

// Validate checks if the settings are complete.
func (s *ConnectorSettings) Validate() error {
	if !s.Kind.Valid() {
		return ErrUnknownProviderKind
	}
	if s.ClientID == "" {
		return ErrClientIDRequired
	}
	if s.ClientSecret == "" {
		return ErrClientSecretRequired
	}
	if s.CallbackURL == "" {
		return ErrCallbackURLRequired
	}
	return nil
}
