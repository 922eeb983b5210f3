// errors.go defines sentinel error values shared across all provider
// implementations, covering configuration, OAuth, and repository listing
// failures, plus the APIError type carrying upstream HTTP status codes.
package provider

import "errors"

var (
	// Configuration errors
	ErrUnknownProviderKind  = errors.New("unknown git provider kind")
	ErrClientIDRequired     = errors.New("missing OAuth client ID")
	ErrClientSecretRequired = errors.New("missing OAuth client secret")
	ErrCallbackURLRequired  = errors.New("missing OAuth redirect URL")
	ErrConnectorUnavailable = errors.New("git provider not supported")

	// OAuth errors
	ErrExchangeFailed    = errors.New("failed to exchange OAuth code")
	ErrScopeInsufficient = errors.New("OAuth token lacks required scopes")
	ErrTokenInvalid      = errors.New("OAuth token is invalid")
)

// APIError represents an error from the provider API. The message is safe to
// log; the wrapped error may carry raw provider response text and must never
// be echoed to a browser.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// WrapRemoteError creates an APIError for a failed provider call. A status of
// zero means the request never completed (network failure).
func WrapRemoteError(status int, reason string, err error) *APIError {
	return &APIError{
		StatusCode: status,
		Message:    reason,
		Err:        err,
	}
}
