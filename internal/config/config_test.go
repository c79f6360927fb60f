package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Listen != "0.0.0.0:8080" {
		t.Errorf("unexpected listen address: %s", cfg.Server.Listen)
	}
	if cfg.Fetch.Workers != 10 {
		t.Errorf("unexpected worker count: %d", cfg.Fetch.Workers)
	}
	if cfg.Fetch.PipBinary != "pip3" {
		t.Errorf("unexpected pip binary: %s", cfg.Fetch.PipBinary)
	}
	if len(cfg.Fetch.Platforms) != 1 || cfg.Fetch.Platforms[0] != HostPlatformTag() {
		t.Errorf("unexpected default platforms: %v", cfg.Fetch.Platforms)
	}
	if len(cfg.Fetch.BuildDeps) != 3 {
		t.Errorf("unexpected build deps: %v", cfg.Fetch.BuildDeps)
	}
	if cfg.Bundle.Compression != "zstd" {
		t.Errorf("unexpected compression: %s", cfg.Bundle.Compression)
	}
}

func TestLoad(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:9999"
  data_dir: /srv/wheelgap
fetch:
  workers: 4
  python_version: "3.11"
  platforms:
    - manylinux2014_x86_64
    - win_amd64
mirror:
  wheelhouse_dir: /srv/wheels
`
	path := filepath.Join(t.TempDir(), "wheelgap.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Listen != "127.0.0.1:9999" {
		t.Errorf("unexpected listen address: %s", cfg.Server.Listen)
	}
	if cfg.Fetch.Workers != 4 {
		t.Errorf("unexpected workers: %d", cfg.Fetch.Workers)
	}
	if len(cfg.Fetch.Platforms) != 2 {
		t.Errorf("unexpected platforms: %v", cfg.Fetch.Platforms)
	}
	// Unset fields keep their defaults
	if cfg.Fetch.PipBinary != "pip3" {
		t.Errorf("expected default pip binary, got %s", cfg.Fetch.PipBinary)
	}
	if cfg.Bundle.OutputDir != "/mnt/transfer-disk" {
		t.Errorf("expected default bundle output dir, got %s", cfg.Bundle.OutputDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid yaml, got nil")
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DataDir = "/data"

	if got := cfg.WheelhouseDir(); got != "/data/wheelhouse" {
		t.Errorf("WheelhouseDir() = %s", got)
	}
	if got := cfg.MirrorDir(); got != "/data/mirror" {
		t.Errorf("MirrorDir() = %s", got)
	}
	if got := cfg.DBPath(); got != "/data/wheelgap.db" {
		t.Errorf("DBPath() = %s", got)
	}

	// Explicit settings win over derivation
	cfg.Mirror.WheelhouseDir = "/elsewhere/wheels"
	cfg.Server.DBPath = "/elsewhere/state.db"
	if got := cfg.WheelhouseDir(); got != "/elsewhere/wheels" {
		t.Errorf("WheelhouseDir() = %s", got)
	}
	if got := cfg.DBPath(); got != "/elsewhere/state.db" {
		t.Errorf("DBPath() = %s", got)
	}
}

func TestABITag(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"3.12", "cp312"},
		{"3.11", "cp311"},
		{"3.9", "cp39"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Fetch.PythonVersion = tt.version
		if got := cfg.ABITag(); got != tt.want {
			t.Errorf("ABITag(%s) = %s, want %s", tt.version, got, tt.want)
		}
	}
}

func TestHostPlatformTag(t *testing.T) {
	tag := HostPlatformTag()
	if tag == "" {
		t.Fatal("empty platform tag")
	}
	known := []string{"manylinux2014_", "macosx_", "win"}
	ok := false
	for _, prefix := range known {
		if strings.HasPrefix(tag, prefix) {
			ok = true
		}
	}
	if !ok {
		t.Errorf("unrecognized platform tag: %s", tag)
	}
}
