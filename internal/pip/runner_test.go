package pip

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/BadgerOps/wheelgap/internal/manifest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubPip writes a shell script standing in for the pip binary.
func stubPip(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "pip-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("writing stub: %v", err)
	}
	return path
}

func TestRunnerFetchArgs(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	pip := stubPip(t, `echo "$@" > `+argsFile+"\n")

	r := NewRunner(pip, "/tmp/wheelhouse", "3.12", "cp312", testLogger())
	req := manifest.Requirement{Name: "numpy", Version: "1.26.4", Raw: "numpy==1.26.4"}

	outcome := r.Fetch(context.Background(), req, "manylinux2014_x86_64")
	if !outcome.OK {
		t.Fatalf("expected success, got output: %s", outcome.Output)
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("reading recorded args: %v", err)
	}
	got := strings.TrimSpace(string(data))
	want := "download --only-binary=:all: --platform manylinux2014_x86_64 " +
		"--python-version 3.12 --implementation cp --abi cp312 " +
		"--dest /tmp/wheelhouse numpy==1.26.4"
	if got != want {
		t.Errorf("unexpected pip invocation:\n got: %s\nwant: %s", got, want)
	}
}

func TestRunnerFetchFailure(t *testing.T) {
	pip := stubPip(t, "echo 'ERROR: No matching distribution found for ghost==1.0.0'\nexit 1\n")

	r := NewRunner(pip, t.TempDir(), "3.12", "cp312", testLogger())
	req := manifest.Requirement{Name: "ghost", Version: "1.0.0", Raw: "ghost==1.0.0"}

	outcome := r.Fetch(context.Background(), req, "manylinux2014_x86_64")
	if outcome.OK {
		t.Fatal("expected failure")
	}
	if !strings.Contains(outcome.Output, "No matching distribution found") {
		t.Errorf("diagnostic not captured: %q", outcome.Output)
	}
}

func TestRunnerFetchMissingBinary(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "no-such-pip"), t.TempDir(), "3.12", "cp312", testLogger())
	req := manifest.Requirement{Name: "requests", Raw: "requests"}

	outcome := r.Fetch(context.Background(), req, "manylinux2014_x86_64")
	if outcome.OK {
		t.Fatal("expected failure")
	}
	if !strings.Contains(outcome.Output, "failed to run") {
		t.Errorf("launch failure not reported: %q", outcome.Output)
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner("", "/tmp/wh", "3.12", "cp312", nil)
	if r.PipBinary != "pip3" {
		t.Errorf("expected pip3 default, got %s", r.PipBinary)
	}
}
