package pip

import (
	"strings"

	"github.com/BadgerOps/wheelgap/internal/manifest"
	"github.com/BadgerOps/wheelgap/internal/wheelhouse"
)

// FailureKind classifies a failed fetch attempt.
type FailureKind string

const (
	// FailureIncompatible means pip found the package but no binary
	// distribution exists for the requested platform/ABI.
	FailureIncompatible FailureKind = "incompatible"
	// FailureGeneric is any other resolution failure.
	FailureGeneric FailureKind = "generic"
)

// incompatibleMarkers are the pip diagnostic phrasings that indicate a
// platform/ABI incompatibility rather than a generic resolution failure.
// Matching is case-insensitive substring matching on the combined output.
var incompatibleMarkers = []string{
	"could not find a version that satisfies the requirement",
	"no matching distribution found",
	"is not a supported wheel on this platform",
	"only binary packages",
}

// Classify inspects a failed attempt's diagnostic text.
func Classify(diagnostic string) FailureKind {
	lower := strings.ToLower(diagnostic)
	for _, marker := range incompatibleMarkers {
		if strings.Contains(lower, marker) {
			return FailureIncompatible
		}
	}
	return FailureGeneric
}

// Suggestion is an alternative requirement the operator may try, with a
// short rationale. Suggestions are advisory only: the scheduler never
// retries with one automatically.
type Suggestion struct {
	Requirement manifest.Requirement
	Rationale   string
}

// knownReleases maps normalized package names to the last known release of
// each major.minor series. It backs the "same series, newer patch"
// suggestion for packages that commonly lack binary distributions for older
// patch levels.
var knownReleases = map[string]map[string]string{
	"numpy": {
		"1.24": "1.24.4",
		"1.25": "1.25.2",
		"1.26": "1.26.4",
		"2.0":  "2.0.2",
		"2.1":  "2.1.3",
	},
	"scipy": {
		"1.10": "1.10.1",
		"1.11": "1.11.4",
		"1.13": "1.13.1",
	},
	"pandas": {
		"1.5": "1.5.3",
		"2.0": "2.0.3",
		"2.1": "2.1.4",
		"2.2": "2.2.3",
	},
	"pillow": {
		"9.5":  "9.5.0",
		"10.4": "10.4.0",
	},
	"cryptography": {
		"41.0": "41.0.7",
		"42.0": "42.0.8",
	},
	"lxml": {
		"4.9": "4.9.4",
		"5.2": "5.2.2",
	},
	"grpcio": {
		"1.59": "1.59.5",
		"1.62": "1.62.3",
	},
}

// Suggest produces ranked alternatives for a failed requirement, most
// specific first. The unconstrained form of the package is always the last
// (lowest-confidence) entry.
func Suggest(req manifest.Requirement, kind FailureKind) []Suggestion {
	var suggestions []Suggestion

	if kind == FailureIncompatible && req.Version != "" {
		if latest, ok := seriesLatest(req.Name, req.Version); ok && latest != req.Version {
			alt := manifest.Requirement{Name: req.Name, Version: latest}
			alt.Raw = alt.String()
			suggestions = append(suggestions, Suggestion{
				Requirement: alt,
				Rationale:   "last known " + series(req.Version) + "-series release",
			})
		}
	}

	suggestions = append(suggestions, Suggestion{
		Requirement: req.Unconstrained(),
		Rationale:   "latest",
	})
	return suggestions
}

// seriesLatest looks up the last known release in the same major.minor
// series as version.
func seriesLatest(name, version string) (string, bool) {
	releases, ok := knownReleases[wheelhouse.NormalizeName(name)]
	if !ok {
		return "", false
	}
	latest, ok := releases[series(version)]
	return latest, ok
}

// series reduces a version to its major.minor prefix.
func series(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
