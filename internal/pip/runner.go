// Package pip invokes the external pip resolver to fetch binary
// distributions, and classifies its failures into actionable suggestions.
package pip

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/BadgerOps/wheelgap/internal/manifest"
)

// Outcome is the result of one fetch attempt for one requirement on one
// target platform.
type Outcome struct {
	OK     bool
	Output string // combined stdout/stderr from the subprocess
}

// Fetcher performs one acquisition attempt. It is the seam between the
// scheduler and the external resolver, so tests can substitute a fake.
type Fetcher interface {
	Fetch(ctx context.Context, req manifest.Requirement, platformTag string) Outcome
}

// Runner is the real Fetcher: it shells out to pip download, constrained to
// a single requirement, a single destination directory, and a single target
// platform. All durable effects land in the destination directory via the
// subprocess.
type Runner struct {
	PipBinary     string // e.g. "pip3"; resolved via PATH
	DestDir       string
	PythonVersion string // e.g. "3.12"
	ABITag        string // e.g. "cp312"
	logger        *slog.Logger
}

// NewRunner creates a Runner writing into destDir.
func NewRunner(pipBinary, destDir, pythonVersion, abiTag string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if pipBinary == "" {
		pipBinary = "pip3"
	}
	return &Runner{
		PipBinary:     pipBinary,
		DestDir:       destDir,
		PythonVersion: pythonVersion,
		ABITag:        abiTag,
		logger:        logger,
	}
}

// Fetch runs one pip download invocation for req targeting platformTag.
// The subprocess always runs to completion once started; the context only
// gates whole-process interruption (e.g. SIGINT), not per-attempt halts.
func (r *Runner) Fetch(ctx context.Context, req manifest.Requirement, platformTag string) Outcome {
	args := []string{
		"download",
		"--only-binary=:all:",
		"--platform", platformTag,
		"--python-version", r.PythonVersion,
		"--implementation", "cp",
		"--abi", r.ABITag,
		"--dest", r.DestDir,
		req.String(),
	}

	r.logger.Debug("invoking pip", "requirement", req.String(), "platform", platformTag)

	cmd := exec.CommandContext(ctx, r.PipBinary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			// pip itself could not be started; fold the launch error into
			// the diagnostic text so it reaches the operator unchanged.
			return Outcome{OK: false, Output: fmt.Sprintf("failed to run %s: %v", r.PipBinary, err)}
		}
		return Outcome{OK: false, Output: string(output)}
	}

	return Outcome{OK: true, Output: string(output)}
}

// DiagnosticExcerpt trims a pip diagnostic down to its most informative
// tail lines for console reporting.
func DiagnosticExcerpt(output string, maxLines int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
