// Package bundle packs the wheelhouse into split, checksummed archives for
// physical transfer onto the air-gapped network, and unpacks them on the
// other side.
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"time"

	"archive/tar"

	"github.com/BadgerOps/wheelgap/internal/store"
	"github.com/BadgerOps/wheelgap/internal/wheelhouse"
)

// Manifest describes a transfer package.
type Manifest struct {
	Version       string         `json:"version"`
	Created       time.Time      `json:"created"`
	SourceHost    string         `json:"source_host"`
	Archives      []ArchiveInfo  `json:"archives"`
	TotalArchives int            `json:"total_archives"`
	TotalSize     int64          `json:"total_size"`
	FileInventory []ManifestFile `json:"file_inventory"`
}

// ArchiveInfo describes one split archive.
type ArchiveInfo struct {
	Name   string   `json:"name"`
	Size   int64    `json:"size"`
	SHA256 string   `json:"sha256"`
	Files  []string `json:"files"`
}

// ManifestFile is one wheelhouse artifact in the inventory.
type ManifestFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
}

// Bundler exports and imports transfer packages for a wheelhouse.
type Bundler struct {
	wheelhouse *wheelhouse.Store
	records    *store.Store // optional; nil disables transfer history
	logger     *slog.Logger
}

// New creates a Bundler for the given wheelhouse.
func New(wh *wheelhouse.Store, records *store.Store, logger *slog.Logger) *Bundler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bundler{wheelhouse: wh, records: records, logger: logger}
}

// manifestName is the fixed manifest filename on transfer media.
const manifestName = "wheelgap-manifest.json"

// addFileToTar adds a single file to a tar archive.
func addFileToTar(tw *tar.Writer, srcPath, tarPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    tarPath,
		Size:    stat.Size(),
		Mode:    int64(stat.Mode()),
		ModTime: stat.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tw, f); err != nil {
		return err
	}
	return nil
}

// hashFile computes the SHA256 of a file, returning hex string and size.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
