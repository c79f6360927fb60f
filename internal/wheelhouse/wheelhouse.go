package wheelhouse

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BadgerOps/wheelgap/internal/manifest"
)

// Artifact is one binary distribution file in the wheelhouse. Identity is
// the filename, which encodes the package name, version, and platform tags.
type Artifact struct {
	Filename    string
	Name        string // distribution name as encoded in the filename
	Version     string
	PlatformTag string // empty for sdists
	Size        int64
	Sdist       bool
}

// NormalizedName returns the artifact's package name in normalized form.
func (a Artifact) NormalizedName() string {
	return NormalizeName(a.Name)
}

// Covers reports whether this artifact satisfies the given platform tag.
// Sdists and pure wheels (platform "any") satisfy every platform; compiled
// wheels satisfy a platform when the tag appears in their platform segment
// (the segment may be a dot-joined list of compatible tags).
func (a Artifact) Covers(platformTag string) bool {
	if a.Sdist || a.PlatformTag == "any" {
		return true
	}
	for _, tag := range strings.Split(a.PlatformTag, ".") {
		if tag == platformTag {
			return true
		}
	}
	return false
}

// Store is the flat on-disk collection of downloaded artifacts. It is
// append-only: this system never deletes from it.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating wheelhouse directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the wheelhouse directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Scan enumerates every artifact in the wheelhouse, sorted by filename.
// Files that are not recognizable distribution files are skipped.
func (s *Store) Scan() ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading wheelhouse: %w", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		art, ok := ParseFilename(entry.Name())
		if !ok {
			s.logger.Debug("skipping unrecognized file", "file", entry.Name())
			continue
		}
		if info, err := entry.Info(); err == nil {
			art.Size = info.Size()
		}
		artifacts = append(artifacts, art)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Filename < artifacts[j].Filename
	})
	return artifacts, nil
}

// Satisfied reports whether the requirement is already covered by the store
// for every requested platform tag. A constrained requirement must match on
// version; an unconstrained one matches any version of the package.
func (s *Store) Satisfied(req manifest.Requirement, platforms []string) (bool, error) {
	artifacts, err := s.Scan()
	if err != nil {
		return false, err
	}

	wanted := NormalizeName(req.Name)
	for _, platform := range platforms {
		covered := false
		for _, art := range artifacts {
			if art.NormalizedName() != wanted {
				continue
			}
			if req.Version != "" && art.Version != req.Version {
				continue
			}
			if art.Covers(platform) {
				covered = true
				break
			}
		}
		if !covered {
			return false, nil
		}
	}
	return true, nil
}

// Path returns the absolute path of a file inside the wheelhouse.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// NormalizeName normalizes a package name: case-folded, with every run of
// hyphens, underscores, and dots collapsed to a single hyphen.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	sep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('-')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// ParseFilename parses a binary-distribution filename into an Artifact.
// Wheels follow name-version(-build)-pytag-abitag-platform.whl; sdists
// follow name-version.tar.gz. The name segment is everything before the
// first hyphen-then-digit boundary.
func ParseFilename(filename string) (Artifact, bool) {
	switch {
	case strings.HasSuffix(filename, ".whl"):
		stem := strings.TrimSuffix(filename, ".whl")
		name, rest, ok := splitAtVersion(stem)
		if !ok {
			return Artifact{}, false
		}
		// rest is version(-build)-pytag-abitag-platform
		parts := strings.Split(rest, "-")
		if len(parts) < 4 {
			return Artifact{}, false
		}
		return Artifact{
			Filename:    filename,
			Name:        name,
			Version:     parts[0],
			PlatformTag: parts[len(parts)-1],
		}, true

	case strings.HasSuffix(filename, ".tar.gz"):
		stem := strings.TrimSuffix(filename, ".tar.gz")
		name, version, ok := splitAtVersion(stem)
		if !ok {
			return Artifact{}, false
		}
		return Artifact{
			Filename: filename,
			Name:     name,
			Version:  version,
			Sdist:    true,
		}, true
	}
	return Artifact{}, false
}

// splitAtVersion splits a filename stem at the first hyphen followed by a
// digit, which the distribution filename grammar guarantees is the boundary
// between the name and the version.
func splitAtVersion(stem string) (name, rest string, ok bool) {
	for i := 0; i+1 < len(stem); i++ {
		if stem[i] == '-' && stem[i+1] >= '0' && stem[i+1] <= '9' {
			return stem[:i], stem[i+1:], true
		}
	}
	return "", "", false
}
