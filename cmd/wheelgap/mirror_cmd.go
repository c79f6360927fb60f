package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BadgerOps/wheelgap/internal/mirror"
	"github.com/spf13/cobra"
)

func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Build the PEP 503 simple repository tree from the wheelhouse",
		Long: `Reorganize the flat wheelhouse into a normalized simple repository tree:
one directory per normalized package name, each holding its artifacts and
an index document, plus a top-level index linking every package.

The mirror build is idempotent: rerunning over an unchanged wheelhouse
produces byte-identical output, and rerunning after new artifacts were
fetched only adds links.`,
		Example: `  wheelgap mirror
  wheelgap mirror --data-dir /srv/wheelgap`,
		RunE: mirrorRun,
	}

	return cmd
}

func mirrorRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	builder := mirror.NewBuilder(globalWheelhouse, globalCfg.MirrorDir(), logger)

	report, err := builder.Build()
	if err != nil {
		return fmt.Errorf("mirror build failed: %w", err)
	}

	log.Info("mirror build finished", "root", globalCfg.MirrorDir())

	fmt.Println("\n=== MIRROR SUMMARY ===")
	fmt.Printf("Packages:  %d\n", report.Packages)
	fmt.Printf("Artifacts: %d\n", report.Artifacts)
	fmt.Printf("Copied:    %d\n", report.Copied)
	fmt.Printf("Duration:  %s\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("\nServe with: wheelgap serve --listen %s\n", globalCfg.Server.Listen)
	fmt.Printf("Install with: pip install --index-url http://<host>:<port>/simple/ <package>\n")

	return nil
}
