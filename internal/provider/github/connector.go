// Package github implements the provider Connector interface for GitHub (both
// github.com and GitHub Enterprise Server). It uses the OAuth App web flow for
// authentication and the GitHub REST API v3 for repository listing.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/docuforge/docuforge/internal/provider"
)

const (
	defaultGitHubURL = "https://github.com"
	defaultAPIURL    = "https://api.github.com"
)

// httpClient bounds all outbound GitHub calls. Provider-reported authorization
// errors are never retried; only the transport-level timeout applies.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// Connector implements provider.Connector for GitHub
type Connector struct {
	clientID     string
	clientSecret string
	callbackURL  string
	baseURL      string
	apiURL       string
}

// NewConnector creates a GitHub connector
func NewConnector(settings *provider.ConnectorSettings) (*Connector, error) {
	baseURL := defaultGitHubURL
	apiURL := defaultAPIURL

	if settings.InstanceBaseURL != "" {
		baseURL = settings.InstanceBaseURL
		apiURL = settings.InstanceBaseURL + "/api/v3"
	}

	return &Connector{
		clientID:     settings.ClientID,
		clientSecret: settings.ClientSecret,
		callbackURL:  settings.CallbackURL,
		baseURL:      baseURL,
		apiURL:       apiURL,
	}, nil
}

// Platform returns the provider kind
func (c *Connector) Platform() provider.Kind {
	return provider.KindGitHub
}

// AuthorizationURL returns the OAuth authorization URL
func (c *Connector) AuthorizationURL(stateParam string, requestedScopes []string) string {
	scopes := "repo,read:user,user:email"
	if len(requestedScopes) > 0 {
		// GitHub delimits scopes with commas, not spaces.
		scopes = strings.Join(requestedScopes, ",")
	}

	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.callbackURL)
	params.Set("state", stateParam)
	params.Set("scope", scopes)

	return fmt.Sprintf("%s/login/oauth/authorize?%s", c.baseURL, params.Encode())
}

// EscalatedScopes returns the scope set requested on re-authorization after an
// insufficient-scope failure.
func (c *Connector) EscalatedScopes() []string {
	return []string{"repo", "read:user", "user:email", "read:org"}
}

// ExchangeCode exchanges an authorization code for an access token
func (c *Connector) ExchangeCode(ctx context.Context, authCode string) (*provider.AccessToken, error) {
	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("code", authCode)
	data.Set("redirect_uri", c.callbackURL)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/login/oauth/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("github: create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, provider.WrapRemoteError(0, "failed to exchange code", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, provider.WrapRemoteError(resp.StatusCode, "oauth code exchange failed", fmt.Errorf("%s", body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		Scope       string `json:"scope"`
		Error       string `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("github: decode token response: %w", err)
	}

	// GitHub reports bad codes with 200 and an error field in the body.
	if result.Error != "" || result.AccessToken == "" {
		return nil, provider.WrapRemoteError(resp.StatusCode, "oauth code exchange failed", provider.ErrExchangeFailed)
	}

	scopes := []string{}
	if result.Scope != "" {
		scopes = strings.Split(result.Scope, ",")
	}

	return &provider.AccessToken{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		Scopes:      scopes,
	}, nil
}

// ListRepositories lists up to 100 of the most recently updated repositories
// the token can access
func (c *Connector) ListRepositories(ctx context.Context, creds *provider.AccessToken) ([]*provider.Repository, error) {
	endpoint := fmt.Sprintf("%s/user/repos?sort=updated&per_page=100&visibility=all", c.apiURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("github: create repo-list request: %w", err)
	}
	c.setAuthHeaders(req, creds)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, provider.WrapRemoteError(0, "failed to fetch repositories", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, provider.WrapRemoteError(resp.StatusCode, "token rejected", provider.ErrTokenInvalid)
		}
		if resp.StatusCode == http.StatusForbidden && strings.Contains(string(body), "insufficient_scope") {
			return nil, provider.WrapRemoteError(resp.StatusCode, "token lacks required scopes", provider.ErrScopeInsufficient)
		}
		return nil, provider.WrapRemoteError(resp.StatusCode, "failed to fetch repositories", fmt.Errorf("%s", body))
	}

	var ghRepos []githubRepo
	if err := json.NewDecoder(resp.Body).Decode(&ghRepos); err != nil {
		return nil, fmt.Errorf("github: decode repo list: %w", err)
	}

	repos := make([]*provider.Repository, len(ghRepos))
	for i, ghRepo := range ghRepos {
		repos[i] = c.convertRepo(&ghRepo)
	}

	return repos, nil
}

type githubRepo struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Language      string    `json:"language"`
	Size          int       `json:"size"` // kilobytes
	Private       bool      `json:"private"`
	Visibility    string    `json:"visibility"`
	HTMLURL       string    `json:"html_url"`
	CloneURL      string    `json:"clone_url"`
	DefaultBranch string    `json:"default_branch"`
	UpdatedAt     time.Time `json:"updated_at"`
	Stargazers    int       `json:"stargazers_count"`
}

func (c *Connector) convertRepo(ghRepo *githubRepo) *provider.Repository {
	language := ghRepo.Language
	if language == "" {
		language = "Unknown"
	}
	visibility := ghRepo.Visibility
	if visibility == "" {
		visibility = "public"
		if ghRepo.Private {
			visibility = "private"
		}
	}

	return &provider.Repository{
		ID:            strconv.FormatInt(ghRepo.ID, 10),
		Name:          ghRepo.Name,
		Description:   ghRepo.Description,
		Language:      language,
		SizeDisplay:   provider.FormatSize(ghRepo.Size),
		LastUpdated:   ghRepo.UpdatedAt,
		Stars:         ghRepo.Stargazers,
		Visibility:    visibility,
		DefaultBranch: ghRepo.DefaultBranch,
		WebURL:        ghRepo.HTMLURL,
		CloneURL:      ghRepo.CloneURL,
		Provider:      provider.KindGitHub,
	}
}

func (c *Connector) setAuthHeaders(req *http.Request, creds *provider.AccessToken) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", creds.AccessToken))
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

func init() {
	provider.RegisterConnector(provider.KindGitHub, func(settings *provider.ConnectorSettings) (provider.Connector, error) {
		return NewConnector(settings)
	})
}
