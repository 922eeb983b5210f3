package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docuforge/docuforge/internal/provider"
)

func newTestConnector(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewConnector(&provider.ConnectorSettings{
		ClientID:        "test-client",
		ClientSecret:    "test-secret",
		CallbackURL:     srv.URL + "/callback",
		InstanceBaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("NewConnector: %v", err)
	}
	return c
}

func TestAuthorizationURL(t *testing.T) {
	c, _ := NewConnector(&provider.ConnectorSettings{
		ClientID:    "cid",
		CallbackURL: "http://localhost/cb",
	})

	url := c.AuthorizationURL("st", []string{"repository", "account"})
	if !strings.HasPrefix(url, defaultBitbucketURL+"/site/oauth2/authorize?") {
		t.Errorf("unexpected endpoint: %s", url)
	}
	if !strings.Contains(url, "scope=repository+account") {
		t.Errorf("scopes not space-joined: %s", url)
	}
	if !strings.Contains(url, "state=st") {
		t.Errorf("missing state: %s", url)
	}
}

func TestExchangeCode(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/site/oauth2/access_token" {
			http.NotFound(w, r)
			return
		}
		// Bitbucket authenticates the token exchange with client basic auth.
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test-client" || pass != "test-secret" {
			t.Errorf("basic auth = %q/%q ok=%v", user, pass, ok)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "bb-token",
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": "bb-refresh",
			"scopes":        "repository account",
		})
	})

	token, err := c.ExchangeCode(context.Background(), "code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if token.AccessToken != "bb-token" || token.RefreshToken != "bb-refresh" {
		t.Errorf("token = %+v", token)
	}
	if token.ExpiresAt == nil {
		t.Error("ExpiresAt not set from expires_in")
	}
	if len(token.Scopes) != 2 {
		t.Errorf("Scopes = %v", token.Scopes)
	}
}

func TestListRepositories(t *testing.T) {
	updated := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2.0/repositories" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("role") != "contributor" || q.Get("sort") != "-updated_on" || q.Get("pagelen") != "100" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"values": []map[string]any{{
				"uuid": "{abc-123}", "name": "wiki", "description": "",
				"language": "python", "size": 4096, "updated_on": updated,
				"is_private": true,
				"mainbranch": map[string]string{"name": "master"},
				"links": map[string]any{
					"html": map[string]string{"href": "https://bitbucket.org/w/wiki"},
					"clone": []map[string]string{
						{"name": "ssh", "href": "git@bitbucket.org:w/wiki.git"},
						{"name": "https", "href": "https://bitbucket.org/w/wiki.git"},
					},
				},
			}},
		})
	})

	repos, err := c.ListRepositories(context.Background(), &provider.AccessToken{AccessToken: "tok"})
	if err != nil {
		t.Fatalf("ListRepositories: %v", err)
	}
	if len(repos) != 1 {
		t.Fatalf("got %d repos, want 1", len(repos))
	}
	repo := repos[0]
	if repo.ID != "{abc-123}" {
		t.Errorf("ID = %q, want the bitbucket uuid", repo.ID)
	}
	if repo.CloneURL != "https://bitbucket.org/w/wiki.git" {
		t.Errorf("CloneURL = %q, want the https clone link", repo.CloneURL)
	}
	if repo.Stars != 0 {
		t.Errorf("Stars = %d, bitbucket has no stars", repo.Stars)
	}
	if repo.SizeDisplay != "4.0 MB" {
		t.Errorf("SizeDisplay = %q", repo.SizeDisplay)
	}
	if repo.DefaultBranch != "master" || repo.Visibility != "private" {
		t.Errorf("repo = %+v", repo)
	}
}

func TestListRepositories_InsufficientScope(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"message":"insufficient_scope"}}`, http.StatusForbidden)
	})

	_, err := c.ListRepositories(context.Background(), &provider.AccessToken{AccessToken: "tok"})
	if !errors.Is(err, provider.ErrScopeInsufficient) {
		t.Errorf("error = %v, want ErrScopeInsufficient", err)
	}
}

func TestEscalatedScopes(t *testing.T) {
	c, _ := NewConnector(&provider.ConnectorSettings{})
	got := strings.Join(c.EscalatedScopes(), " ")
	if got != "repository repository:write account team pullrequest" {
		t.Errorf("EscalatedScopes = %q", got)
	}
}
