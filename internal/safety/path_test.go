package safety

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCleanRelativePath(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"requests-aws4auth", "requests-aws4auth", false},
		{"numpy/index.html", filepath.Join("numpy", "index.html"), false},
		{"a/./b", filepath.Join("a", "b"), false},
		{"", "", true},
		{".", "", true},
		{"..", "", true},
		{"../escape", "", true},
		{"a/../../escape", "", true},
		{"/etc/passwd", "", true},
	}
	for _, tt := range tests {
		got, err := CleanRelativePath(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CleanRelativePath(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CleanRelativePath(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CleanRelativePath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCleanArchiveEntry(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"numpy-1.26.4-cp312-cp312-manylinux2014_x86_64.whl", false},
		{"requests-2.32.3.tar.gz", false},
		{"subdir/evil.whl", true},
		{"../evil.whl", true},
		{"/abs/evil.whl", true},
		{"", true},
	}
	for _, tt := range tests {
		got, err := CleanArchiveEntry(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CleanArchiveEntry(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CleanArchiveEntry(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.input {
			t.Errorf("CleanArchiveEntry(%q) = %q", tt.input, got)
		}
	}
}

func TestSafeJoinUnder(t *testing.T) {
	root := t.TempDir()

	got, err := SafeJoinUnder(root, "numpy")
	if err != nil {
		t.Fatalf("SafeJoinUnder failed: %v", err)
	}
	if !strings.HasPrefix(got, root) {
		t.Errorf("joined path %q not under root %q", got, root)
	}

	for _, rel := range []string{"../outside", "/abs", "..", ""} {
		if _, err := SafeJoinUnder(root, rel); err == nil {
			t.Errorf("SafeJoinUnder(%q) should fail", rel)
		}
	}
}

func TestEnsureUnderRoot(t *testing.T) {
	root := t.TempDir()

	if _, err := EnsureUnderRoot(root, filepath.Join(root, "simple", "numpy")); err != nil {
		t.Errorf("expected nested path accepted: %v", err)
	}
	if _, err := EnsureUnderRoot(root, filepath.Join(root, "..", "sibling")); err == nil {
		t.Error("expected escaping path rejected")
	}
}
