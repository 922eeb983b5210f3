// Package bitbucket implements the provider Connector interface for Bitbucket
// Cloud. It uses Bitbucket's OAuth 2.0 flow and the 2.0 REST API for repository
// listing.
package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docuforge/docuforge/internal/provider"
)

const (
	defaultBitbucketURL = "https://bitbucket.org"
	defaultAPIURL       = "https://api.bitbucket.org/2.0"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Connector implements provider.Connector for Bitbucket Cloud
type Connector struct {
	clientID     string
	clientSecret string
	callbackURL  string
	baseURL      string
	apiURL       string
}

// NewConnector creates a Bitbucket Cloud connector
func NewConnector(settings *provider.ConnectorSettings) (*Connector, error) {
	baseURL := defaultBitbucketURL
	apiURL := defaultAPIURL

	if settings.InstanceBaseURL != "" {
		baseURL = settings.InstanceBaseURL
		apiURL = settings.InstanceBaseURL + "/2.0"
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
	return provider.KindBitbucket
}

// AuthorizationURL returns the OAuth authorization URL
func (c *Connector) AuthorizationURL(stateParam string, requestedScopes []string) string {
	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.callbackURL)
	params.Set("response_type", "code")
	params.Set("state", stateParam)
	if len(requestedScopes) > 0 {
		params.Set("scope", strings.Join(requestedScopes, " "))
	}

	return fmt.Sprintf("%s/site/oauth2/authorize?%s", c.baseURL, params.Encode())
}

// EscalatedScopes returns the scope set requested on re-authorization after an
// insufficient-scope failure.
func (c *Connector) EscalatedScopes() []string {
	return []string{"repository", "repository:write", "account", "team", "pullrequest"}
}

// ExchangeCode exchanges an authorization code for an access token
func (c *Connector) ExchangeCode(ctx context.Context, authCode string) (*provider.AccessToken, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", authCode)
	data.Set("redirect_uri", c.callbackURL)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/site/oauth2/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("bitbucket: create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
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
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		Scopes       string `json:"scopes"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("bitbucket: decode token response: %w", err)
	}

	token := &provider.AccessToken{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
	}
	if result.ExpiresIn > 0 {
		expiresAt := time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
		token.ExpiresAt = &expiresAt
	}
	if result.Scopes != "" {
		token.Scopes = strings.Split(result.Scopes, " ")
	}

	return token, nil
}

// ListRepositories lists up to 100 of the most recently updated repositories
// the token's user contributes to
func (c *Connector) ListRepositories(ctx context.Context, creds *provider.AccessToken) ([]*provider.Repository, error) {
	endpoint := fmt.Sprintf("%s/repositories?role=contributor&sort=-updated_on&pagelen=100", c.apiURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("bitbucket: create repo-list request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", creds.AccessToken))
	req.Header.Set("Content-Type", "application/json")

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

	var page struct {
		Values []bitbucketRepo `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("bitbucket: decode repo list: %w", err)
	}

	repos := make([]*provider.Repository, len(page.Values))
	for i, bbRepo := range page.Values {
		repos[i] = c.convertRepo(&bbRepo)
	}

	return repos, nil
}

type bitbucketRepo struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Size        int       `json:"size"` // kilobytes
	UpdatedOn   time.Time `json:"updated_on"`
	IsPrivate   bool      `json:"is_private"`
	MainBranch  struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
		Clone []struct {
			Name string `json:"name"`
			Href string `json:"href"`
		} `json:"clone"`
	} `json:"links"`
}

func (c *Connector) convertRepo(bbRepo *bitbucketRepo) *provider.Repository {
	language := bbRepo.Language
	if language == "" {
		language = "Unknown"
	}
	visibility := "public"
	if bbRepo.IsPrivate {
		visibility = "private"
	}

	// Bitbucket lists an https and an ssh clone link; the dashboard wants https.
	cloneURL := ""
	for _, link := range bbRepo.Links.Clone {
		if strings.HasPrefix(link.Href, "https://") {
			cloneURL = link.Href
			break
		}
	}

	return &provider.Repository{
		ID:            bbRepo.UUID,
		Name:          bbRepo.Name,
		Description:   bbRepo.Description,
		Language:      language,
		SizeDisplay:   provider.FormatSize(bbRepo.Size),
		LastUpdated:   bbRepo.UpdatedOn,
		Stars:         0, // Bitbucket has no stars
		Visibility:    visibility,
		DefaultBranch: bbRepo.MainBranch.Name,
		WebURL:        bbRepo.Links.HTML.Href,
		CloneURL:      cloneURL,
		Provider:      provider.KindBitbucket,
	}
}

func init() {
	provider.RegisterConnector(provider.KindBitbucket, func(settings *provider.ConnectorSettings) (provider.Connector, error) {
		return NewConnector(settings)
	})
}
