package store

import (
	"fmt"
)

// migrate runs all pending migrations
func (s *Store) migrate() error {
	// Create migrations table if it doesn't exist
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get the current schema version
	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Debug("current schema version", "version", currentVersion)

	// Define all migrations
	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE fetch_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					start_time DATETIME NOT NULL,
					end_time DATETIME,
					requirements INTEGER DEFAULT 0,
					fetched INTEGER DEFAULT 0,
					skipped INTEGER DEFAULT 0,
					failed INTEGER DEFAULT 0,
					status TEXT DEFAULT 'running',
					error_message TEXT
				);

				CREATE TABLE artifact_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					filename TEXT NOT NULL UNIQUE,
					package TEXT NOT NULL,
					version TEXT,
					platform_tag TEXT,
					size INTEGER DEFAULT 0,
					sha256 TEXT,
					fetch_run_id INTEGER,
					recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY(fetch_run_id) REFERENCES fetch_runs(id)
				);

				CREATE TABLE failed_requirements (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					specifier TEXT NOT NULL,
					platform TEXT,
					kind TEXT,
					diagnostic TEXT,
					suggestions_json TEXT,
					failed_at DATETIME NOT NULL,
					resolved BOOLEAN DEFAULT 0
				);
			`,
		},
		{
			version: 2,
			sql: `
				CREATE TABLE bundles (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					direction TEXT NOT NULL,
					path TEXT NOT NULL,
					archive_count INTEGER DEFAULT 0,
					total_size INTEGER DEFAULT 0,
					status TEXT DEFAULT 'running',
					error_message TEXT,
					start_time DATETIME NOT NULL,
					end_time DATETIME
				);
			`,
		},
	}

	// Run pending migrations
	for _, mig := range migrations {
		if mig.version > currentVersion {
			s.logger.Info("running migration", "version", mig.version)

			if err := s.runMigration(mig.version, mig.sql); err != nil {
				return fmt.Errorf("failed to run migration %d: %w", mig.version, err)
			}
		}
	}

	return nil
}

// runMigration executes a migration and records it
func (s *Store) runMigration(version int, sql string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Execute the migration SQL
	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	// Record the migration
	insertSQL := "INSERT INTO migrations (version) VALUES (?)"
	if _, err := tx.Exec(insertSQL, version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}
