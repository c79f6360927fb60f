package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BadgerOps/wheelgap/internal/bundle"
	"github.com/spf13/cobra"
)

var (
	importFrom       string
	importVerifyOnly bool
	importForce      bool
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a transfer package into the wheelhouse",
		Long: `Import a wheelgap transfer package from mounted media: every archive is
validated against its manifest checksum before anything is extracted, then
the artifacts are unpacked into the wheelhouse.

After importing, run 'wheelgap mirror' to rebuild the index tree.`,
		Example: `  wheelgap import --from /mnt/usb
  wheelgap import --from /mnt/usb --verify-only`,
		RunE: importRun,
	}

	cmd.Flags().StringVar(&importFrom, "from", "", "directory containing the transfer package (required)")
	cmd.Flags().BoolVar(&importVerifyOnly, "verify-only", false, "validate archives without extracting")
	cmd.Flags().BoolVar(&importForce, "force", false, "skip checksum validation")

	if err := cmd.MarkFlagRequired("from"); err != nil {
		panic(err)
	}

	return cmd
}

func importRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	b := bundle.New(globalWheelhouse, globalStore, logger)

	report, err := b.Import(context.Background(), bundle.ImportOptions{
		SourceDir:  importFrom,
		VerifyOnly: importVerifyOnly,
		Force:      importForce,
	})
	if report != nil {
		fmt.Println("\n=== IMPORT SUMMARY ===")
		fmt.Printf("Validated: %d\n", report.ArchivesValidated)
		fmt.Printf("Failed:    %d\n", report.ArchivesFailed)
		fmt.Printf("Extracted: %d\n", report.FilesExtracted)
		fmt.Printf("Size:      %d bytes\n", report.TotalSize)
		fmt.Printf("Duration:  %s\n", report.Duration.Round(time.Millisecond))
		for _, e := range report.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	log.Info("import finished", "source", importFrom)
	fmt.Println("\nRun 'wheelgap mirror' to rebuild the index tree.")
	return nil
}
