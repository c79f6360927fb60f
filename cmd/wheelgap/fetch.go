package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BadgerOps/wheelgap/internal/fetch"
	"github.com/BadgerOps/wheelgap/internal/manifest"
	"github.com/BadgerOps/wheelgap/internal/pip"
	"github.com/spf13/cobra"
)

var (
	fetchRequirements string
	fetchWorkers      int
	fetchPlatforms    string
	fetchDryRun       bool
	fetchNoBootstrap  bool
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch all required packages and their dependencies into the wheelhouse",
		Long: `Fetch every package named in the requirements manifest, plus all transitive
dependencies, as pre-built binary artifacts. pip performs resolution and
download per requirement; wheelgap supervises the attempts with a bounded
worker pool.

The fetch command will:
  1. Bootstrap the build toolchain packages (wheel, setuptools, pip)
  2. Skip requirements already satisfied by the wheelhouse
  3. Fetch the rest in parallel, one pip invocation per platform
  4. Halt on the first unrecoverable failure with ranked suggestions

Reruns after a partial failure skip completed work, so fixing one manifest
line and rerunning costs at most one pip invocation per unfinished
requirement.`,
		Example: `  wheelgap fetch
  wheelgap fetch --requirements requirements.txt --workers 4
  wheelgap fetch --platform manylinux2014_x86_64,win_amd64
  wheelgap fetch --dry-run`,
		RunE: fetchRun,
	}

	cmd.Flags().StringVar(&fetchRequirements, "requirements", "", "path to the requirements manifest (default from config)")
	cmd.Flags().IntVar(&fetchWorkers, "workers", 0, "maximum concurrent pip invocations (default from config)")
	cmd.Flags().StringVar(&fetchPlatforms, "platform", "", "comma-separated target platform tags (default from config)")
	cmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "show what would be fetched without invoking pip")
	cmd.Flags().BoolVar(&fetchNoBootstrap, "no-bootstrap", false, "skip the build toolchain bootstrap step")

	return cmd
}

func fetchRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	reqPath := globalCfg.Fetch.Requirements
	if fetchRequirements != "" {
		reqPath = fetchRequirements
	}
	workers := globalCfg.Fetch.Workers
	if fetchWorkers > 0 {
		workers = fetchWorkers
	}
	platforms := globalCfg.Fetch.Platforms
	if fetchPlatforms != "" {
		platforms = strings.Split(fetchPlatforms, ",")
		for i, p := range platforms {
			platforms[i] = strings.TrimSpace(p)
		}
	}

	reqs, err := manifest.ParseFile(reqPath)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		log.Warn("no requirements in manifest", "path", reqPath)
		return nil
	}

	log.Info("fetch operation",
		"requirements", len(reqs),
		"workers", workers,
		"platforms", platforms,
		"dry_run", fetchDryRun,
	)

	ctx := context.Background()

	if fetchDryRun {
		return fetchDryRunReport(reqs, platforms)
	}

	runner := pip.NewRunner(
		globalCfg.Fetch.PipBinary,
		globalCfg.WheelhouseDir(),
		globalCfg.Fetch.PythonVersion,
		globalCfg.ABITag(),
		logger,
	)
	scheduler := fetch.NewScheduler(globalWheelhouse, runner, globalStore, workers, platforms, logger)

	if !fetchNoBootstrap {
		fmt.Println("Bootstrapping build toolchain...")
		if err := scheduler.Bootstrap(ctx, globalCfg.Fetch.BuildDeps); err != nil {
			return err
		}
	}

	report, runErr := scheduler.Run(ctx, reqs)
	if report != nil {
		printFetchReport(report)
	}
	return runErr
}

// fetchDryRunReport prints which requirements would be fetched or skipped
// without invoking pip.
func fetchDryRunReport(reqs []manifest.Requirement, platforms []string) error {
	fmt.Println("DRY RUN: fetch would perform the following:")
	for _, req := range reqs {
		satisfied, err := globalWheelhouse.Satisfied(req, platforms)
		if err != nil {
			return err
		}
		if satisfied {
			fmt.Printf("  skip:  %s (already present)\n", req)
		} else {
			fmt.Printf("  fetch: %s\n", req)
		}
	}
	return nil
}

// printFetchReport prints the run summary and, on failure, the diagnostic
// excerpt and ranked suggestions the operator needs to act.
func printFetchReport(report *fetch.Report) {
	fmt.Println("\n=== FETCH SUMMARY ===")
	fmt.Printf("Fetched:  %d\n", report.Fetched)
	fmt.Printf("Skipped:  %d\n", report.Skipped)
	fmt.Printf("Failed:   %d\n", report.Failed)
	fmt.Printf("Duration: %s\n", report.Duration.Round(time.Millisecond))

	if report.Failure == nil {
		return
	}

	f := report.Failure
	fmt.Printf("\nFAILED: %s", f.Requirement)
	if f.Platform != "" {
		fmt.Printf(" (platform %s)", f.Platform)
	}
	fmt.Println()
	fmt.Println("----------------- PIP ERROR OUTPUT -----------------")
	fmt.Println(pip.DiagnosticExcerpt(f.Diagnostic, 20))
	fmt.Println("----------------------------------------------------")

	if len(f.Suggestions) > 0 {
		fmt.Println("\nSuggestions (edit the manifest and rerun):")
		for _, sg := range f.Suggestions {
			fmt.Printf("  - %s  (%s)\n", sg.Requirement, sg.Rationale)
		}
	}
}
