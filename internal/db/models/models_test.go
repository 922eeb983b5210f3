package models

import (
	"testing"
	"time"

	"github.com/docuforge/docuforge/internal/provider"
)

func TestDeriveSlug(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple", "Acme", "acme", nil},
		{"punctuation stripped", "Acme Corp!", "acme-corp", nil},
		{"runs collapse", "  multiple   spaces--dashes ", "multiple-spaces-dashes", nil},
		{"already a slug", "my-org-1", "my-org-1", nil},
		{"mixed unicode", "Café ☕ Docs", "caf-docs", nil},
		{"digits survive", "Team 42", "team-42", nil},
		{"only punctuation", "!!! --- !!!", "", ErrEmptySlug},
		{"empty input", "", "", ErrEmptySlug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveSlug(tt.input)
			if err != tt.wantErr {
				t.Fatalf("DeriveSlug(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DeriveSlug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMemberRole(t *testing.T) {
	if !RoleOwner.Valid() || MemberRole("ROOT").Valid() {
		t.Error("Valid() mismatch")
	}

	tests := []struct {
		role MemberRole
		min  MemberRole
		want bool
	}{
		{RoleOwner, RoleEditor, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleEditor, RoleAdmin, false},
		{RoleViewer, RoleEditor, false},
		{MemberRole("bogus"), RoleViewer, false},
	}
	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.min); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestProviderCredentialUsable(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name string
		cred ProviderCredential
		want bool
	}{
		{"active, no expiry", ProviderCredential{IsActive: true}, true},
		{"active, future expiry", ProviderCredential{IsActive: true, ExpiresAt: &future}, true},
		{"active, past expiry", ProviderCredential{IsActive: true, ExpiresAt: &past}, false},
		{"inactive", ProviderCredential{IsActive: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderCredentialScopeList(t *testing.T) {
	cred := ProviderCredential{Scopes: "repo read:org"}
	scopes := cred.ScopeList()
	if len(scopes) != 2 || scopes[0] != "repo" || scopes[1] != "read:org" {
		t.Errorf("ScopeList() = %v", scopes)
	}

	empty := ProviderCredential{}
	if got := empty.ScopeList(); len(got) != 0 {
		t.Errorf("ScopeList() on empty = %v, want []", got)
	}
}

func TestConnectionViewHidesToken(t *testing.T) {
	future := time.Now().Add(time.Hour)
	cred := ProviderCredential{
		Provider:          provider.KindGitHub,
		AccessTokenSealed: "aabb:ccdd:eeff",
		Scopes:            "repo",
		IsActive:          true,
		ExpiresAt:         &future,
	}

	view := cred.ConnectionView()
	if !view.Connected || view.Provider != provider.KindGitHub {
		t.Errorf("view = %+v", view)
	}
	if len(view.Scopes) != 1 || view.Scopes[0] != "repo" {
		t.Errorf("Scopes = %v", view.Scopes)
	}
}
