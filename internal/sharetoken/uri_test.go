package sharetoken

import "testing"

func TestBuildShareURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		scope   Scope
		want    string
		wantErr bool
	}{
		{
			name:  "project sub-path",
			base:  "https://preview.example.com",
			scope: Scope{ProjectName: "docs"},
			want:  "https://preview.example.com/docs/?share_token=spt_abc",
		},
		{
			name:  "base with path",
			base:  "https://example.com/preview/",
			scope: Scope{ProjectName: "docs"},
			want:  "https://example.com/preview/docs/?share_token=spt_abc",
		},
		{
			name:  "www at root",
			base:  "https://preview.example.com",
			scope: Scope{ProjectName: "docs", WWW: true},
			want:  "https://preview.example.com/?share_token=spt_abc",
		},
		{
			name:  "www keeps base path",
			base:  "https://example.com/preview",
			scope: Scope{ProjectName: "docs", WWW: true},
			want:  "https://example.com/preview/?share_token=spt_abc",
		},
		{
			name:    "relative base",
			base:    "/preview",
			scope:   Scope{ProjectName: "docs"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildShareURL(tt.base, tt.scope, "spt_abc")
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildShareURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildShareURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		secret, hash, err := generateSecret()
		if err != nil {
			t.Fatalf("generateSecret() error = %v", err)
		}
		if seen[secret] {
			t.Fatalf("duplicate secret %q", secret)
		}
		seen[secret] = true
		if !matchesHash(secret, hash) {
			t.Errorf("hash does not match secret")
		}
		if matchesHash(secret+"x", hash) {
			t.Errorf("hash matches altered secret")
		}
	}
}
