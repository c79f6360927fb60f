package bundle

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/BadgerOps/wheelgap/internal/safety"
	"github.com/BadgerOps/wheelgap/internal/store"
)

// ImportOptions configures an import operation.
type ImportOptions struct {
	SourceDir  string
	VerifyOnly bool
	Force      bool // skip checksum validation
}

// ImportReport summarizes a completed import.
type ImportReport struct {
	ArchivesValidated int
	ArchivesFailed    int
	FilesExtracted    int
	TotalSize         int64
	Duration          time.Duration
	Errors            []string
}

// Import reads a wheelgap transfer package, validates every archive against
// its manifest checksum, and extracts the artifacts into the wheelhouse.
func (b *Bundler) Import(ctx context.Context, opts ImportOptions) (*ImportReport, error) {
	startTime := time.Now()

	manifestPath := filepath.Join(opts.SourceDir, manifestName)
	manifestData, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	b.logger.Info("import starting",
		"source", opts.SourceDir,
		"archives", manifest.TotalArchives,
		"artifacts", len(manifest.FileInventory),
	)

	// Verify all archive files are present before touching anything
	for _, arch := range manifest.Archives {
		archPath := filepath.Join(opts.SourceDir, arch.Name)
		if _, err := os.Stat(archPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("archive not found: %s", arch.Name)
		}
	}

	var rec *store.Bundle
	if b.records != nil {
		rec = &store.Bundle{
			Direction: "import",
			Path:      opts.SourceDir,
			Status:    "running",
			StartTime: startTime,
		}
		if err := b.records.CreateBundle(rec); err != nil {
			b.logger.Warn("failed to record import", "error", err)
			rec = nil
		}
	}

	report := &ImportReport{}

	// Validate archives
	for _, arch := range manifest.Archives {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if opts.Force {
			report.ArchivesValidated++
			continue
		}

		archPath := filepath.Join(opts.SourceDir, arch.Name)
		b.logger.Info("validating archive", "name", arch.Name)

		actualHash, _, err := hashFile(archPath)
		if err != nil {
			report.ArchivesFailed++
			report.Errors = append(report.Errors, fmt.Sprintf("hashing %s: %v", arch.Name, err))
			continue
		}
		if actualHash != arch.SHA256 {
			report.ArchivesFailed++
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: expected sha256 %s, got %s", arch.Name, arch.SHA256, actualHash))
			continue
		}

		report.ArchivesValidated++
	}

	if report.ArchivesFailed > 0 {
		report.Duration = time.Since(startTime)
		b.finishRecord(rec, report, fmt.Sprintf("%d archive(s) failed validation", report.ArchivesFailed))
		return report, fmt.Errorf("%d archive(s) failed validation", report.ArchivesFailed)
	}

	if opts.VerifyOnly {
		report.Duration = time.Since(startTime)
		b.finishRecord(rec, report, "")
		b.logger.Info("verify-only complete", "validated", report.ArchivesValidated)
		return report, nil
	}

	// Extract archives into the wheelhouse
	for _, arch := range manifest.Archives {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		archPath := filepath.Join(opts.SourceDir, arch.Name)
		b.logger.Info("extracting archive", "name", arch.Name)

		extracted, size, err := b.extractArchive(archPath)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("extracting %s: %v", arch.Name, err))
			report.Duration = time.Since(startTime)
			b.finishRecord(rec, report, err.Error())
			return report, fmt.Errorf("extracting %s: %w", arch.Name, err)
		}

		report.FilesExtracted += extracted
		report.TotalSize += size
	}

	report.Duration = time.Since(startTime)
	b.finishRecord(rec, report, "")

	b.logger.Info("import completed",
		"files_extracted", report.FilesExtracted,
		"total_size", report.TotalSize,
		"duration", report.Duration,
	)

	return report, nil
}

// finishRecord finalizes the bundle record, when one was created.
func (b *Bundler) finishRecord(rec *store.Bundle, report *ImportReport, errMsg string) {
	if b.records == nil || rec == nil {
		return
	}
	if errMsg != "" {
		rec.Status = "failed"
		rec.ErrorMessage = errMsg
	} else {
		rec.Status = "completed"
	}
	rec.ArchiveCount = report.ArchivesValidated
	rec.TotalSize = report.TotalSize
	rec.EndTime = time.Now()
	if err := b.records.UpdateBundle(rec); err != nil {
		b.logger.Warn("failed to update bundle record", "error", err)
	}
}

// extractArchive decompresses and untars one archive into the wheelhouse.
// Both zstd and xz compressed tars are accepted; archives are flat, so any
// entry with a path component is rejected.
func (b *Bundler) extractArchive(archivePath string) (int, int64, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, 0, fmt.Errorf("opening archive: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var decompressed io.Reader
	switch {
	case strings.HasSuffix(archivePath, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return 0, 0, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		decompressed = zr
	case strings.HasSuffix(archivePath, ".tar.xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return 0, 0, fmt.Errorf("creating xz reader: %w", err)
		}
		decompressed = xr
	default:
		return 0, 0, fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}

	tr := tar.NewReader(decompressed)

	extracted := 0
	totalSize := int64(0)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return extracted, totalSize, fmt.Errorf("reading tar entry: %w", err)
		}

		if header.Typeflag == tar.TypeDir {
			continue
		}
		// Reject symlinks/hardlinks and other non-regular entries.
		if header.Typeflag != tar.TypeReg {
			return extracted, totalSize, fmt.Errorf("unsupported tar entry type for %s: %c", header.Name, header.Typeflag)
		}

		clean, err := safety.CleanArchiveEntry(header.Name)
		if err != nil {
			return extracted, totalSize, fmt.Errorf("unexpected path in archive: %w", err)
		}

		destPath := b.wheelhouse.Path(clean)
		outFile, err := os.Create(destPath)
		if err != nil {
			return extracted, totalSize, fmt.Errorf("creating file %s: %w", destPath, err)
		}

		n, err := io.Copy(outFile, tr)
		if closeErr := outFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			return extracted, totalSize, fmt.Errorf("extracting %s: %w", header.Name, err)
		}

		extracted++
		totalSize += n
	}

	return extracted, totalSize, nil
}
