package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	// SchemaVersion is the user_version stamp this code expects on disk
	SchemaVersion = 2
)

// ErrIncompatibleSchema is returned when the on-disk schema is newer than
// the one this build understands
var ErrIncompatibleSchema = errors.New("incompatible schema version")

// Migration represents a database schema migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: 2,
		Up:      migrationV2Up,
		Down:    migrationV2Down,
	},
}

const migrationV1Up = `
-- Indexed artifacts. The id is shared with the pending entry it came from.
CREATE TABLE IF NOT EXISTS artifacts (
    id INTEGER PRIMARY KEY,
    group_id TEXT NOT NULL,
    artifact_id TEXT NOT NULL,
    version TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(group_id, artifact_id, version)
);

-- Crawl work queue
CREATE TABLE IF NOT EXISTS pending_artifacts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id TEXT NOT NULL,
    artifact_id TEXT NOT NULL,
    version TEXT NOT NULL,
    retries INTEGER NOT NULL DEFAULT 0,
    fetched BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(group_id, artifact_id, version)
);

CREATE INDEX IF NOT EXISTS idx_pending_next ON pending_artifacts(fetched, retries, id);

-- Classes
CREATE TABLE IF NOT EXISTS class_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pkg TEXT NOT NULL,
    name TEXT NOT NULL,
    artifact_id INTEGER NOT NULL,
    FOREIGN KEY (artifact_id) REFERENCES artifacts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_class_records_artifact ON class_records(artifact_id);

CREATE TABLE IF NOT EXISTS class_lookups (
    identifier TEXT NOT NULL,
    class_id INTEGER NOT NULL,
    PRIMARY KEY (identifier, class_id),
    FOREIGN KEY (class_id) REFERENCES class_records(id) ON DELETE CASCADE
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_class_lookups_class ON class_lookups(class_id);

-- Methods
CREATE TABLE IF NOT EXISTS method_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    pkg TEXT NOT NULL,
    receive_pkg TEXT,
    receive_name TEXT,
    artifact_id INTEGER NOT NULL,
    FOREIGN KEY (artifact_id) REFERENCES artifacts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_method_records_artifact ON method_records(artifact_id);

CREATE TABLE IF NOT EXISTS method_lookups (
    identifier TEXT NOT NULL,
    method_id INTEGER NOT NULL,
    PRIMARY KEY (identifier, method_id),
    FOREIGN KEY (method_id) REFERENCES method_records(id) ON DELETE CASCADE
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_method_lookups_method ON method_lookups(method_id);
`

const migrationV1Down = `
DROP TABLE IF EXISTS method_lookups;
DROP TABLE IF EXISTS method_records;
DROP TABLE IF EXISTS class_lookups;
DROP TABLE IF EXISTS class_records;
DROP TABLE IF EXISTS pending_artifacts;
DROP TABLE IF EXISTS artifacts;
`

const migrationV2Up = `
ALTER TABLE artifacts ADD COLUMN artifactory TEXT NOT NULL DEFAULT 'MAVEN';
ALTER TABLE pending_artifacts ADD COLUMN artifactory TEXT NOT NULL DEFAULT 'MAVEN';
`

const migrationV2Down = `
ALTER TABLE pending_artifacts DROP COLUMN artifactory;
ALTER TABLE artifacts DROP COLUMN artifactory;
`

// currentSchemaVersion reads the user_version stamp
func currentSchemaVersion(ctx context.Context, q querier) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// ApplyMigrations runs all pending migrations. A stamp newer than
// SchemaVersion is refused with ErrIncompatibleSchema.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("%w: store is at version %d, expected %d", ErrIncompatibleSchema, current, SchemaVersion)
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		if migration.Version <= current {
			continue // Already applied
		}
		if err := runMigrationStep(ctx, db, migration.Up, migration.Version); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		current = migration.Version
	}

	if current != SchemaVersion {
		return fmt.Errorf("%w: store is at version %d, expected %d", ErrIncompatibleSchema, current, SchemaVersion)
	}
	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current == 0 {
		return errors.New("no migrations to rollback")
	}

	// Find migration
	var migration *Migration
	for i := range AllMigrations {
		if AllMigrations[i].Version == current {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %d not found", current)
	}

	if err := runMigrationStep(ctx, db, migration.Down, current-1); err != nil {
		return fmt.Errorf("failed to rollback migration %d: %w", current, err)
	}
	return nil
}

// runMigrationStep executes a migration script and stamps the new version
// in one transaction
func runMigrationStep(ctx context.Context, db *sql.DB, script string, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	// PRAGMA arguments cannot be bound
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}
