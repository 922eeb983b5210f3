package provider

import (
	"encoding/json"
	"testing"
	"time"
)

func TestKindValid(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindGitHub, true},
		{KindGitLab, true},
		{KindBitbucket, true},
		{Kind("azuredevops"), false},
		{Kind(""), false},
		{Kind("GitHub"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.want {
				t.Errorf("Kind(%q).Valid() = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestAccessTokenIsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		token AccessToken
		want  bool
	}{
		{"no expiry never expires", AccessToken{}, false},
		{"future expiry", AccessToken{ExpiresAt: &future}, false},
		{"past expiry", AccessToken{ExpiresAt: &past}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

// The JSON field names are the dashboard contract; every serialized key must
// carry a value some connector actually populates.
func TestRepositoryJSONContract(t *testing.T) {
	data, err := json.Marshal(Repository{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var keys map[string]any
	if err := json.Unmarshal(data, &keys); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := []string{
		"id", "name", "description", "language", "size", "lastUpdated",
		"stars", "visibility", "branch", "url", "cloneUrl", "provider",
	}
	if len(keys) != len(want) {
		t.Errorf("serialized %d fields, want %d: %s", len(keys), len(want), data)
	}
	for _, k := range want {
		if _, ok := keys[k]; !ok {
			t.Errorf("missing JSON field %q", k)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		sizeKB int
		want   string
	}{
		{0, "0 KB"},
		{1, "1 KB"},
		{1023, "1023 KB"},
		{1024, "1.0 MB"},
		{1536, "1.5 MB"},
		{2048, "2.0 MB"},
		{10547, "10.3 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatSize(tt.sizeKB); got != tt.want {
				t.Errorf("FormatSize(%d) = %q, want %q", tt.sizeKB, got, tt.want)
			}
		})
	}
}
