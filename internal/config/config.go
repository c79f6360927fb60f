package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Mirror MirrorConfig `yaml:"mirror"`
	Bundle BundleConfig `yaml:"bundle"`
}

// ServerConfig holds server and storage settings
type ServerConfig struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`
}

// FetchConfig holds acquisition settings
type FetchConfig struct {
	Requirements  string   `yaml:"requirements"`
	Workers       int      `yaml:"workers"`
	PipBinary     string   `yaml:"pip_binary"`
	PythonVersion string   `yaml:"python_version"`
	Platforms     []string `yaml:"platforms"`
	BuildDeps     []string `yaml:"build_deps"`
}

// MirrorConfig holds mirror tree settings
type MirrorConfig struct {
	WheelhouseDir string `yaml:"wheelhouse_dir"`
	MirrorDir     string `yaml:"mirror_dir"`
}

// BundleConfig holds export/import settings for transfer media
type BundleConfig struct {
	OutputDir   string `yaml:"output_dir"`
	Compression string `yaml:"compression"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:  "0.0.0.0:8080",
			DataDir: "/var/lib/wheelgap",
			DBPath:  "",
		},
		Fetch: FetchConfig{
			Requirements:  "requirements.txt",
			Workers:       10,
			PipBinary:     "pip3",
			PythonVersion: "3.12",
			Platforms:     []string{HostPlatformTag()},
			BuildDeps:     []string{"wheel", "setuptools", "pip"},
		},
		Bundle: BundleConfig{
			OutputDir:   "/mnt/transfer-disk",
			Compression: "zstd",
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"wheelgap.yaml",
		"/etc/wheelgap/wheelgap.yaml",
	}

	// Add user config path
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "wheelgap", "wheelgap.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// WheelhouseDir returns the absolute wheelhouse directory
func (c *Config) WheelhouseDir() string {
	if c.Mirror.WheelhouseDir != "" {
		return c.Mirror.WheelhouseDir
	}
	return filepath.Join(c.Server.DataDir, "wheelhouse")
}

// MirrorDir returns the absolute mirror tree root
func (c *Config) MirrorDir() string {
	if c.Mirror.MirrorDir != "" {
		return c.Mirror.MirrorDir
	}
	return filepath.Join(c.Server.DataDir, "mirror")
}

// DBPath returns the sqlite database path
func (c *Config) DBPath() string {
	if c.Server.DBPath != "" {
		return c.Server.DBPath
	}
	return filepath.Join(c.Server.DataDir, "wheelgap.db")
}

// ABITag derives the CPython ABI tag from the configured python version,
// e.g. "3.12" -> "cp312"
func (c *Config) ABITag() string {
	return "cp" + strings.ReplaceAll(c.Fetch.PythonVersion, ".", "")
}

// HostPlatformTag maps the running platform onto the closest binary
// distribution platform tag. manylinux2014 is used on Linux for broad
// glibc compatibility.
func HostPlatformTag() string {
	switch runtime.GOOS {
	case "linux":
		switch runtime.GOARCH {
		case "arm64":
			return "manylinux2014_aarch64"
		case "386":
			return "manylinux2014_i686"
		default:
			return "manylinux2014_x86_64"
		}
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "macosx_11_0_arm64"
		}
		return "macosx_10_9_x86_64"
	case "windows":
		if runtime.GOARCH == "386" {
			return "win32"
		}
		return "win_amd64"
	default:
		return "manylinux2014_x86_64"
	}
}
