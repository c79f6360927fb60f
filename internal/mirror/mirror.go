// Package mirror transforms the flat wheelhouse into a PEP 503 simple
// repository tree that a package manager can consume over plain HTTP.
package mirror

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BadgerOps/wheelgap/internal/safety"
	"github.com/BadgerOps/wheelgap/internal/wheelhouse"
)

// Report summarizes a completed mirror build.
type Report struct {
	Packages  int
	Artifacts int
	Copied    int
	Duration  time.Duration
}

// Builder generates the mirror tree from the wheelhouse. Rebuilds are
// idempotent: the same wheelhouse contents always produce byte-identical
// index documents, and a grown wheelhouse produces a superset.
type Builder struct {
	wheelhouse *wheelhouse.Store
	root       string
	logger     *slog.Logger
}

// NewBuilder creates a Builder writing the mirror tree under root.
func NewBuilder(wh *wheelhouse.Store, root string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{wheelhouse: wh, root: root, logger: logger}
}

// Build regenerates the full mirror tree: one directory per normalized
// package name containing its artifacts and an index document, plus a
// top-level index linking every package directory. The wheelhouse itself
// is never modified.
func (b *Builder) Build() (*Report, error) {
	startTime := time.Now()

	artifacts, err := b.wheelhouse.Scan()
	if err != nil {
		return nil, fmt.Errorf("scanning wheelhouse: %w", err)
	}

	byPackage := make(map[string][]wheelhouse.Artifact)
	for _, art := range artifacts {
		name := art.NormalizedName()
		byPackage[name] = append(byPackage[name], art)
	}

	simpleDir := filepath.Join(b.root, "simple")
	if err := os.MkdirAll(simpleDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating mirror root: %w", err)
	}

	names := make([]string, 0, len(byPackage))
	for name := range byPackage {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &Report{Packages: len(names), Artifacts: len(artifacts)}

	for _, name := range names {
		copied, err := b.buildPackage(simpleDir, name, byPackage[name])
		if err != nil {
			return nil, err
		}
		report.Copied += copied
	}

	if err := b.writeRootIndex(simpleDir, names); err != nil {
		return nil, err
	}

	report.Duration = time.Since(startTime)
	b.logger.Info("mirror built",
		"packages", report.Packages,
		"artifacts", report.Artifacts,
		"copied", report.Copied,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// buildPackage creates one package directory, copies its artifacts in, and
// regenerates its index document.
func (b *Builder) buildPackage(simpleDir, name string, artifacts []wheelhouse.Artifact) (int, error) {
	pkgDir, err := safety.SafeJoinUnder(simpleDir, name)
	if err != nil {
		return 0, fmt.Errorf("package directory for %q: %w", name, err)
	}
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating package directory: %w", err)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Filename < artifacts[j].Filename
	})

	copied := 0
	var index strings.Builder
	index.WriteString("<!DOCTYPE html>\n")
	index.WriteString("<html>\n<head><title>Links for " + name + "</title></head>\n")
	index.WriteString("<body>\n<h1>Links for " + name + "</h1>\n")

	for _, art := range artifacts {
		didCopy, err := b.copyArtifact(art, pkgDir)
		if err != nil {
			return copied, err
		}
		if didCopy {
			copied++
		}
		index.WriteString(`  <a href="` + art.Filename + `">` + art.Filename + "</a><br />\n")
	}
	index.WriteString("</body>\n</html>\n")

	if err := os.WriteFile(filepath.Join(pkgDir, "index.html"), []byte(index.String()), 0o644); err != nil {
		return copied, fmt.Errorf("writing index for %s: %w", name, err)
	}
	return copied, nil
}

// copyArtifact copies one artifact from the wheelhouse into the package
// directory. Copies already present with the expected size are left alone
// so reruns only touch new artifacts.
func (b *Builder) copyArtifact(art wheelhouse.Artifact, pkgDir string) (bool, error) {
	dest := filepath.Join(pkgDir, art.Filename)
	if info, err := os.Stat(dest); err == nil && info.Size() == art.Size {
		return false, nil
	}

	src, err := os.Open(b.wheelhouse.Path(art.Filename))
	if err != nil {
		return false, fmt.Errorf("opening artifact %s: %w", art.Filename, err)
	}
	defer src.Close()

	tmp := dest + ".partial"
	dst, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return false, fmt.Errorf("copying %s: %w", art.Filename, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("closing %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("placing %s: %w", dest, err)
	}
	return true, nil
}

// writeRootIndex regenerates the top-level index linking every package
// directory, alphabetically, as the index discovery protocol expects.
func (b *Builder) writeRootIndex(simpleDir string, names []string) error {
	var index strings.Builder
	index.WriteString("<!DOCTYPE html>\n")
	index.WriteString("<html>\n<head><title>Simple index</title></head>\n")
	index.WriteString("<body>\n")
	for _, name := range names {
		index.WriteString(`  <a href="` + name + `/">` + name + "</a><br />\n")
	}
	index.WriteString("</body>\n</html>\n")

	if err := os.WriteFile(filepath.Join(simpleDir, "index.html"), []byte(index.String()), 0o644); err != nil {
		return fmt.Errorf("writing root index: %w", err)
	}
	return nil
}
