package pip

import (
	"testing"

	"github.com/BadgerOps/wheelgap/internal/manifest"
)

// TestClassifyIncompatible recognizes pip's no-binary-available phrasings
func TestClassifyIncompatible(t *testing.T) {
	diagnostics := []string{
		"ERROR: Could not find a version that satisfies the requirement numpy==1.24.4 (from versions: 1.26.0, 1.26.4)",
		"ERROR: No matching distribution found for numpy==1.24.4",
		"numpy-1.24.4-cp312-cp312-win32.whl is not a supported wheel on this platform.",
		"ERROR: Could not fetch numpy: only binary packages were requested",
	}
	for _, d := range diagnostics {
		if kind := Classify(d); kind != FailureIncompatible {
			t.Errorf("Classify(%q) = %v, want incompatible", d, kind)
		}
	}
}

// TestClassifyGeneric falls through for everything else
func TestClassifyGeneric(t *testing.T) {
	diagnostics := []string{
		"ERROR: HTTP error 503 while getting https://pypi.org/simple/numpy/",
		"ConnectionResetError: [Errno 104] Connection reset by peer",
		"",
	}
	for _, d := range diagnostics {
		if kind := Classify(d); kind != FailureGeneric {
			t.Errorf("Classify(%q) = %v, want generic", d, kind)
		}
	}
}

// TestSuggestIncompatiblePinned ranks series-latest first, unconstrained last
func TestSuggestIncompatiblePinned(t *testing.T) {
	req := manifest.Requirement{Name: "numpy", Version: "1.24.1", Raw: "numpy==1.24.1"}

	suggestions := Suggest(req, FailureIncompatible)
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %+v", len(suggestions), suggestions)
	}

	first := suggestions[0]
	if first.Requirement.String() != "numpy==1.24.4" {
		t.Errorf("expected series-latest first, got %s", first.Requirement)
	}
	if first.Rationale != "last known 1.24-series release" {
		t.Errorf("unexpected rationale: %q", first.Rationale)
	}

	last := suggestions[len(suggestions)-1]
	if last.Requirement.String() != "numpy" || last.Requirement.Version != "" {
		t.Errorf("expected unconstrained form last, got %s", last.Requirement)
	}
}

// TestSuggestUnknownVersion still ends with the unconstrained form
func TestSuggestUnknownVersion(t *testing.T) {
	req := manifest.Requirement{Name: "numpy", Version: "9.9.9", Raw: "numpy==9.9.9"}

	suggestions := Suggest(req, FailureIncompatible)
	if len(suggestions) == 0 {
		t.Fatal("expected at least one suggestion")
	}
	last := suggestions[len(suggestions)-1]
	if last.Requirement.String() != "numpy" {
		t.Errorf("expected unconstrained form last, got %s", last.Requirement)
	}
}

// TestSuggestSamePin does not suggest the already-pinned version
func TestSuggestSamePin(t *testing.T) {
	req := manifest.Requirement{Name: "numpy", Version: "1.26.4", Raw: "numpy==1.26.4"}

	suggestions := Suggest(req, FailureIncompatible)
	for _, sg := range suggestions {
		if sg.Requirement.String() == req.String() {
			t.Errorf("suggested the failing pin itself: %s", sg.Requirement)
		}
	}
}

// TestSuggestGeneric only offers the unconstrained form
func TestSuggestGeneric(t *testing.T) {
	req := manifest.Requirement{Name: "pandas", Version: "2.2.3", Raw: "pandas==2.2.3"}

	suggestions := Suggest(req, FailureGeneric)
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}
	if suggestions[0].Requirement.String() != "pandas" {
		t.Errorf("expected unconstrained form, got %s", suggestions[0].Requirement)
	}
}

// TestSuggestNormalizedLookup resolves the release table via normalized names
func TestSuggestNormalizedLookup(t *testing.T) {
	req := manifest.Requirement{Name: "NumPy", Version: "1.24.0", Raw: "NumPy==1.24.0"}

	suggestions := Suggest(req, FailureIncompatible)
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
	if suggestions[0].Requirement.Version != "1.24.4" {
		t.Errorf("expected series lookup through normalization, got %+v", suggestions[0])
	}
}

// TestDiagnosticExcerpt keeps the informative tail
func TestDiagnosticExcerpt(t *testing.T) {
	out := "line1\nline2\nline3\nline4\n"
	if got := DiagnosticExcerpt(out, 2); got != "line3\nline4" {
		t.Errorf("got %q", got)
	}
	if got := DiagnosticExcerpt("only", 5); got != "only" {
		t.Errorf("got %q", got)
	}
}
