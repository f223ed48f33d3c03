package model

import "testing"

func TestGenerateComponentID(t *testing.T) {
	tests := []struct {
		name       string
		pkgName    string
		version    string
		sha256Hex  string
		filePath   string
		wantPrefix string
	}{
		{
			name:       "with hash",
			pkgName:    "libssl",
			version:    "3.0.11",
			sha256Hex:  "abcdef0123456789abcdef0123456789abcdef0123456789abcdef01234567",
			wantPrefix: "libssl-3.0.11-abcdef0123456789",
		},
		{
			name:       "version only, no hash",
			pkgName:    "libfoo",
			version:    "1.2.3",
			wantPrefix: "libfoo-1.2.3",
		},
		{
			name:       "path hash fallback",
			pkgName:    "unknown-obj",
			filePath:   "/opt/app/plugin.so",
			wantPrefix: "unknown-obj-",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := GenerateComponentID(tc.pkgName, tc.version, tc.sha256Hex, tc.filePath)
			if len(got) < len(tc.wantPrefix) || got[:len(tc.wantPrefix)] != tc.wantPrefix {
				t.Errorf("GenerateComponentID() = %q, want prefix %q", got, tc.wantPrefix)
			}
		})
	}
}

func TestGenerateComponentID_Deterministic(t *testing.T) {
	a := GenerateComponentID("libssl", "3.0.11", "abcd", "/lib/libssl.so.3")
	b := GenerateComponentID("libssl", "3.0.11", "abcd", "/usr/lib/libssl.so.3")
	if a != b {
		t.Errorf("ids differ for same (name,version,hash) despite different paths: %q vs %q", a, b)
	}
}

func TestSanitizeIDSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unknown"},
		{"libssl", "libssl"},
		{"libssl 1.0/foo", "libssl-1.0-foo"},
	}
	for _, tc := range tests {
		if got := sanitizeIDSegment(tc.in); got != tc.want {
			t.Errorf("sanitizeIDSegment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestComponentSHA256(t *testing.T) {
	c := NewComponent()
	if c.ComponentSHA256() != "" {
		t.Errorf("expected empty sha256 on fresh component")
	}
	c.Hashes[HashSHA256] = "deadbeef"
	if c.ComponentSHA256() != "deadbeef" {
		t.Errorf("ComponentSHA256() = %q, want deadbeef", c.ComponentSHA256())
	}
}
