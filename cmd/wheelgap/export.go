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
	exportTo          string
	exportSplitSize   string
	exportCompression string
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the wheelhouse for transfer to the air-gapped network",
		Long: `Export the wheelhouse as split, checksummed archives suitable for burning
to media or transferring via sneakernet. A manifest with per-artifact
checksums and a transfer README are written alongside the archives.

The --to flag is required and specifies the output directory.`,
		Example: `  wheelgap export --to /mnt/transfer-disk
  wheelgap export --to /mnt/usb --split-size 4GB`,
		RunE: exportRun,
	}

	cmd.Flags().StringVar(&exportTo, "to", "", "output directory for the transfer package (required)")
	cmd.Flags().StringVar(&exportSplitSize, "split-size", "25GB", "split archives into chunks of this size")
	cmd.Flags().StringVar(&exportCompression, "compression", "zstd", "compression format (zstd)")

	if err := cmd.MarkFlagRequired("to"); err != nil {
		panic(err)
	}

	return cmd
}

func exportRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	splitSize, err := bundle.ParseSize(exportSplitSize)
	if err != nil {
		return fmt.Errorf("invalid split size: %w", err)
	}

	b := bundle.New(globalWheelhouse, globalStore, logger)

	report, err := b.Export(context.Background(), bundle.ExportOptions{
		OutputDir:   exportTo,
		SplitSize:   splitSize,
		Compression: exportCompression,
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	log.Info("export finished", "output", exportTo)

	fmt.Println("\n=== EXPORT SUMMARY ===")
	fmt.Printf("Archives:  %d\n", len(report.Archives))
	fmt.Printf("Artifacts: %d\n", report.TotalFiles)
	fmt.Printf("Size:      %d bytes\n", report.TotalSize)
	fmt.Printf("Manifest:  %s\n", report.ManifestPath)
	fmt.Printf("Duration:  %s\n", report.Duration.Round(time.Millisecond))

	return nil
}
