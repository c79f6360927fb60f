package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// FetchRun Operations
// ============================================================================

// CreateFetchRun inserts a new FetchRun and sets its ID
func (s *Store) CreateFetchRun(run *FetchRun) error {
	const query = `
		INSERT INTO fetch_runs (
			start_time, end_time, requirements, fetched, skipped, failed,
			status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.StartTime, run.EndTime, run.Requirements, run.Fetched,
		run.Skipped, run.Failed, run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fetch run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateFetchRun updates an existing FetchRun by ID
func (s *Store) UpdateFetchRun(run *FetchRun) error {
	const query = `
		UPDATE fetch_runs SET
			start_time = ?, end_time = ?, requirements = ?, fetched = ?,
			skipped = ?, failed = ?, status = ?, error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.StartTime, run.EndTime, run.Requirements, run.Fetched,
		run.Skipped, run.Failed, run.Status, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fetch run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("fetch run not found: %d", run.ID)
	}

	return nil
}

// ListFetchRuns retrieves the most recent FetchRuns, newest first
func (s *Store) ListFetchRuns(limit int) ([]FetchRun, error) {
	query := `
		SELECT id, start_time, end_time, requirements, fetched, skipped,
		       failed, status, error_message
		FROM fetch_runs
		ORDER BY start_time DESC
	`
	var args []interface{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch runs: %w", err)
	}
	defer rows.Close()

	var runs []FetchRun
	for rows.Next() {
		run := FetchRun{}
		err := rows.Scan(
			&run.ID, &run.StartTime, &run.EndTime, &run.Requirements,
			&run.Fetched, &run.Skipped, &run.Failed, &run.Status,
			&run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// ArtifactRecord Operations
// ============================================================================

// UpsertArtifactRecord inserts or replaces an ArtifactRecord keyed by filename
func (s *Store) UpsertArtifactRecord(rec *ArtifactRecord) error {
	const query = `
		INSERT INTO artifact_records (
			filename, package, version, platform_tag, size, sha256,
			fetch_run_id, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			package = excluded.package,
			version = excluded.version,
			platform_tag = excluded.platform_tag,
			size = excluded.size,
			sha256 = excluded.sha256,
			fetch_run_id = excluded.fetch_run_id
	`

	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	result, err := s.db.Exec(
		query,
		rec.Filename, rec.Package, rec.Version, rec.PlatformTag,
		rec.Size, rec.SHA256, rec.FetchRunID, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert artifact record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil && id != 0 {
		rec.ID = id
	}

	return nil
}

// ListArtifactRecords retrieves artifact records, optionally filtered by
// normalized package name
func (s *Store) ListArtifactRecords(pkg string) ([]ArtifactRecord, error) {
	query := `
		SELECT id, filename, package, version, platform_tag, size,
		       COALESCE(sha256, ''), COALESCE(fetch_run_id, 0), recorded_at
		FROM artifact_records
	`
	var args []interface{}

	if pkg != "" {
		query += " WHERE package = ?"
		args = append(args, pkg)
	}

	query += " ORDER BY filename"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact records: %w", err)
	}
	defer rows.Close()

	var records []ArtifactRecord
	for rows.Next() {
		rec := ArtifactRecord{}
		err := rows.Scan(
			&rec.ID, &rec.Filename, &rec.Package, &rec.Version,
			&rec.PlatformTag, &rec.Size, &rec.SHA256, &rec.FetchRunID,
			&rec.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifact records: %w", err)
	}

	return records, nil
}

// CountArtifactRecords returns the number of recorded artifacts
func (s *Store) CountArtifactRecords() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM artifact_records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count artifact records: %w", err)
	}
	return count, nil
}

// SumArtifactSize returns the total size in bytes of recorded artifacts
func (s *Store) SumArtifactSize() (int64, error) {
	var total int64
	err := s.db.QueryRow("SELECT COALESCE(SUM(size), 0) FROM artifact_records").Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum artifact size: %w", err)
	}
	return total, nil
}

// ============================================================================
// FailedRequirement Operations
// ============================================================================

// AddFailedRequirement inserts a dead letter entry
func (s *Store) AddFailedRequirement(rec *FailedRequirement) error {
	const query = `
		INSERT INTO failed_requirements (
			specifier, platform, kind, diagnostic, suggestions_json,
			failed_at, resolved
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		rec.Specifier, rec.Platform, rec.Kind, rec.Diagnostic,
		rec.SuggestionsJSON, rec.FailedAt, rec.Resolved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert failed requirement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id

	return nil
}

// ListFailedRequirements retrieves unresolved dead letter entries, newest first
func (s *Store) ListFailedRequirements() ([]FailedRequirement, error) {
	const query = `
		SELECT id, specifier, COALESCE(platform, ''), COALESCE(kind, ''),
		       COALESCE(diagnostic, ''), COALESCE(suggestions_json, ''),
		       failed_at, resolved
		FROM failed_requirements
		WHERE resolved = 0
		ORDER BY failed_at DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed requirements: %w", err)
	}
	defer rows.Close()

	var records []FailedRequirement
	for rows.Next() {
		rec := FailedRequirement{}
		err := rows.Scan(
			&rec.ID, &rec.Specifier, &rec.Platform, &rec.Kind,
			&rec.Diagnostic, &rec.SuggestionsJSON, &rec.FailedAt, &rec.Resolved,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failed requirement: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failed requirements: %w", err)
	}

	return records, nil
}

// ResolveFailedRequirement marks a dead letter entry as resolved
func (s *Store) ResolveFailedRequirement(id int64) error {
	result, err := s.db.Exec("UPDATE failed_requirements SET resolved = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to resolve failed requirement: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed requirement not found: %d", id)
	}

	return nil
}

// ============================================================================
// Bundle Operations
// ============================================================================

// CreateBundle inserts a new Bundle record and sets its ID
func (s *Store) CreateBundle(b *Bundle) error {
	const query = `
		INSERT INTO bundles (
			direction, path, archive_count, total_size, status,
			error_message, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		b.Direction, b.Path, b.ArchiveCount, b.TotalSize, b.Status,
		b.ErrorMessage, b.StartTime, b.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bundle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id

	return nil
}

// UpdateBundle updates an existing Bundle by ID
func (s *Store) UpdateBundle(b *Bundle) error {
	const query = `
		UPDATE bundles SET
			direction = ?, path = ?, archive_count = ?, total_size = ?,
			status = ?, error_message = ?, start_time = ?, end_time = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		b.Direction, b.Path, b.ArchiveCount, b.TotalSize, b.Status,
		b.ErrorMessage, b.StartTime, b.EndTime, b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bundle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("bundle not found: %d", b.ID)
	}

	return nil
}

// ListBundles retrieves bundle records, newest first
func (s *Store) ListBundles(limit int) ([]Bundle, error) {
	query := `
		SELECT id, direction, path, archive_count, total_size, status,
		       COALESCE(error_message, ''), start_time, end_time
		FROM bundles
		ORDER BY start_time DESC
	`
	var args []interface{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundles: %w", err)
	}
	defer rows.Close()

	var bundles []Bundle
	for rows.Next() {
		b := Bundle{}
		err := rows.Scan(
			&b.ID, &b.Direction, &b.Path, &b.ArchiveCount, &b.TotalSize,
			&b.Status, &b.ErrorMessage, &b.StartTime, &b.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		bundles = append(bundles, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bundles: %w", err)
	}

	return bundles, nil
}
