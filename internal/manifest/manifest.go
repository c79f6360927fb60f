package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Requirement is one manifest line: a package name with an optional exact
// version constraint. An empty Version means "latest".
type Requirement struct {
	Name    string
	Version string
	Raw     string // normalized manifest line, used as the requirement's identity
}

// String returns the pip requirement specifier for this requirement.
func (r Requirement) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "==" + r.Version
}

// Unconstrained returns the same requirement without its version constraint.
func (r Requirement) Unconstrained() Requirement {
	return Requirement{Name: r.Name, Raw: r.Name}
}

// Parse reads a requirements manifest: one requirement per non-blank,
// non-comment line, either "name" or "name==version". Inline comments
// after the specifier are stripped.
func Parse(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		req, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	return reqs, nil
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	reqs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return reqs, nil
}

// parseLine splits a single specifier into name and optional exact version.
func parseLine(line string) (Requirement, error) {
	name, version, constrained := strings.Cut(line, "==")
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)

	if name == "" {
		return Requirement{}, fmt.Errorf("empty package name in %q", line)
	}
	if strings.ContainsAny(name, " \t") {
		return Requirement{}, fmt.Errorf("invalid package name %q", name)
	}
	if constrained && version == "" {
		return Requirement{}, fmt.Errorf("empty version in %q", line)
	}

	req := Requirement{Name: name, Version: version}
	req.Raw = req.String()
	return req, nil
}
