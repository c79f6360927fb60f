package bundle

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/BadgerOps/wheelgap/internal/store"
)

// ExportOptions configures an export operation.
type ExportOptions struct {
	OutputDir   string
	SplitSize   int64
	Compression string
}

// ExportReport summarizes a completed export.
type ExportReport struct {
	Archives     []ArchiveInfo
	TotalFiles   int
	TotalSize    int64
	ManifestPath string
	Duration     time.Duration
}

// Export creates split tar.zst archives of the wheelhouse for air-gapped
// transfer, plus a checksummed manifest and a transfer README. The mirror
// tree itself is not bundled: the receiving side rebuilds it from the
// imported wheelhouse.
func (b *Bundler) Export(ctx context.Context, opts ExportOptions) (*ExportReport, error) {
	startTime := time.Now()

	if opts.Compression != "zstd" {
		return nil, fmt.Errorf("unsupported compression %q: only zstd is supported for export", opts.Compression)
	}
	if opts.SplitSize <= 0 {
		return nil, fmt.Errorf("split size must be positive")
	}

	artifacts, err := b.wheelhouse.Scan()
	if err != nil {
		return nil, fmt.Errorf("scanning wheelhouse: %w", err)
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no artifacts to export")
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Create split archives
	archiveNum := 1
	currentSize := int64(0)
	var archives []ArchiveInfo
	var currentFiles []string

	var tarWriter *tar.Writer
	var zstdWriter *zstd.Encoder
	var archiveFile *os.File
	var archivePath string

	openArchive := func() error {
		name := fmt.Sprintf("wheelgap-transfer-%03d.tar.zst", archiveNum)
		archivePath = filepath.Join(opts.OutputDir, name)

		var err error
		archiveFile, err = os.Create(archivePath)
		if err != nil {
			return fmt.Errorf("creating archive %s: %w", name, err)
		}
		zstdWriter, err = zstd.NewWriter(archiveFile)
		if err != nil {
			_ = archiveFile.Close()
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		tarWriter = tar.NewWriter(zstdWriter)
		currentFiles = nil
		currentSize = 0
		return nil
	}

	closeArchive := func() (*ArchiveInfo, error) {
		if tarWriter == nil {
			return nil, nil
		}
		if err := tarWriter.Close(); err != nil {
			return nil, fmt.Errorf("closing tar writer: %w", err)
		}
		if err := zstdWriter.Close(); err != nil {
			return nil, fmt.Errorf("closing zstd writer: %w", err)
		}
		if err := archiveFile.Close(); err != nil {
			return nil, fmt.Errorf("closing archive file: %w", err)
		}

		hash, size, err := hashFile(archivePath)
		if err != nil {
			return nil, fmt.Errorf("hashing archive: %w", err)
		}

		name := filepath.Base(archivePath)
		info := &ArchiveInfo{
			Name:   name,
			Size:   size,
			SHA256: hash,
			Files:  currentFiles,
		}

		// Write .sha256 sidecar
		sidecar := archivePath + ".sha256"
		content := fmt.Sprintf("%s  %s\n", hash, name)
		if err := os.WriteFile(sidecar, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing sha256 sidecar: %w", err)
		}

		tarWriter = nil
		zstdWriter = nil
		archiveFile = nil
		archiveNum++
		return info, nil
	}

	if err := openArchive(); err != nil {
		return nil, err
	}

	var fileInventory []ManifestFile
	var totalSize int64

	for _, art := range artifacts {
		select {
		case <-ctx.Done():
			if tarWriter != nil {
				_ = tarWriter.Close()
				_ = zstdWriter.Close()
				_ = archiveFile.Close()
			}
			return nil, ctx.Err()
		default:
		}

		// Roll to next archive if this artifact would exceed split size
		// (unless current archive is empty: a single large file must go somewhere)
		if currentSize > 0 && currentSize+art.Size > opts.SplitSize {
			info, err := closeArchive()
			if err != nil {
				return nil, err
			}
			archives = append(archives, *info)
			if err := openArchive(); err != nil {
				return nil, err
			}
		}

		srcPath := b.wheelhouse.Path(art.Filename)
		if err := addFileToTar(tarWriter, srcPath, art.Filename); err != nil {
			return nil, fmt.Errorf("adding %s to archive: %w", art.Filename, err)
		}
		currentFiles = append(currentFiles, art.Filename)
		currentSize += art.Size

		hash, size, err := hashFile(srcPath)
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", art.Filename, err)
		}
		fileInventory = append(fileInventory, ManifestFile{
			Filename: art.Filename,
			Size:     size,
			SHA256:   hash,
		})
		totalSize += size
	}

	info, err := closeArchive()
	if err != nil {
		return nil, err
	}
	if info != nil {
		archives = append(archives, *info)
	}

	hostname, _ := os.Hostname()
	manifest := &Manifest{
		Version:       "1.0",
		Created:       time.Now().UTC(),
		SourceHost:    hostname,
		Archives:      archives,
		TotalArchives: len(archives),
		TotalSize:     totalSize,
		FileInventory: fileInventory,
	}

	manifestPath := filepath.Join(opts.OutputDir, manifestName)
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, manifestData, 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	manifestHash, _, err := hashFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("hashing manifest: %w", err)
	}
	sidecarContent := fmt.Sprintf("%s  %s\n", manifestHash, manifestName)
	if err := os.WriteFile(manifestPath+".sha256", []byte(sidecarContent), 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest sha256: %w", err)
	}

	readmePath := filepath.Join(opts.OutputDir, "TRANSFER-README.txt")
	if err := os.WriteFile(readmePath, []byte(generateTransferReadme(manifest)), 0o644); err != nil {
		return nil, fmt.Errorf("writing TRANSFER-README.txt: %w", err)
	}

	if b.records != nil {
		rec := &store.Bundle{
			Direction:    "export",
			Path:         opts.OutputDir,
			ArchiveCount: len(archives),
			TotalSize:    totalSize,
			Status:       "completed",
			StartTime:    startTime,
			EndTime:      time.Now(),
		}
		if err := b.records.CreateBundle(rec); err != nil {
			b.logger.Warn("failed to record export", "error", err)
		}
	}

	duration := time.Since(startTime)
	b.logger.Info("export completed",
		"archives", len(archives),
		"artifacts", len(artifacts),
		"total_size", totalSize,
		"duration", duration,
	)

	return &ExportReport{
		Archives:     archives,
		TotalFiles:   len(artifacts),
		TotalSize:    totalSize,
		ManifestPath: manifestPath,
		Duration:     duration,
	}, nil
}

func formatSizeReadme(bytes int64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	if bytes >= gb {
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
}

// generateTransferReadme creates the human-readable README for transfer media.
func generateTransferReadme(m *Manifest) string {
	var b strings.Builder
	b.WriteString("WHEELGAP TRANSFER PACKAGE\n")
	b.WriteString("=========================\n")
	b.WriteString(fmt.Sprintf("Created: %s\n", m.Created.Format("2006-01-02 15:04 UTC")))
	b.WriteString(fmt.Sprintf("Source: %s\n", m.SourceHost))
	b.WriteString(fmt.Sprintf("Archives: %d parts\n", m.TotalArchives))
	b.WriteString(fmt.Sprintf("Total size: %s\n", formatSizeReadme(m.TotalSize)))
	b.WriteString(fmt.Sprintf("Artifacts: %d\n", len(m.FileInventory)))
	b.WriteString("\nTO IMPORT:\n")
	b.WriteString("1. Mount this disk on the disconnected machine\n")
	b.WriteString("2. Run: wheelgap import --from /mnt/usb\n")
	b.WriteString("3. Run: wheelgap mirror\n")
	b.WriteString("4. Run: wheelgap serve\n")
	b.WriteString("\nIF AN ARCHIVE IS CORRUPT:\n")
	b.WriteString("- The import tool will tell you which archive(s) failed\n")
	b.WriteString("- Re-copy only the failed archive from the source machine\n")
	b.WriteString("- Re-run: wheelgap import --from /mnt/usb\n")
	return b.String()
}
