package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Hazer/ArtifactFinder/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation is returned when a write breaks referential integrity or uniqueness
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInTransaction is returned by operations that must not run inside a transaction
	ErrInTransaction = errors.New("operation not allowed inside a transaction")
)

// MemoryLocation selects an ephemeral in-memory store
const MemoryLocation = ":memory:"

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db       *sql.DB
	location string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite serializes writers; one connection keeps pragmas and :memory: state
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance. An empty path or
// MemoryLocation opens an ephemeral store.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		dbPath = MemoryLocation
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, location: dbPath}, nil
}

// Location returns the file path or MemoryLocation
func (s *SQLiteStorage) Location() string {
	return s.location
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// wrapWriteError tags constraint failures so callers can use errors.Is.
// Both drivers report them with "constraint failed" in the message.
func wrapWriteError(op string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "constraint failed") {
		return fmt.Errorf("%s: %w: %v", op, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// rowExists reports whether a COUNT(*) query matches at least one row
func rowExists(ctx context.Context, q querier, query string, args ...interface{}) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check existing row: %w", err)
	}
	return n > 0, nil
}

// nullableID maps a non-persisted id to NULL so SQLite assigns one
func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func parseStoredVersion(s string) (types.Version, error) {
	v, ok := types.ParseVersion(s)
	if !ok {
		return types.Version{}, fmt.Errorf("%w: stored version %q", types.ErrInvalidVersion, s)
	}
	return v, nil
}

func requireVersion(v types.Version) error {
	if v.IsZero() {
		return fmt.Errorf("%w: version is required", types.ErrInvalidVersion)
	}
	return nil
}

// Artifact operations

func scanArtifact(row rowScanner) (*Artifact, error) {
	var artifact Artifact
	var version, artifactory string
	if err := row.Scan(&artifact.ID, &artifact.GroupID, &artifact.ArtifactID, &version, &artifactory); err != nil {
		return nil, err
	}
	v, err := parseStoredVersion(version)
	if err != nil {
		return nil, err
	}
	artifact.Version = v
	artifact.Artifactory = types.Artifactory(artifactory)
	return &artifact, nil
}

// findArtifactWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) findArtifactWithQuerier(ctx context.Context, q querier, groupID, artifactID string, version types.Version) (*Artifact, error) {
	query := `
		SELECT id, group_id, artifact_id, version, artifactory
		FROM artifacts
		WHERE group_id = ? AND artifact_id = ? AND version = ?
	`
	artifact, err := scanArtifact(q.QueryRowContext(ctx, query, groupID, artifactID, version.String()))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find artifact: %w", err)
	}
	return artifact, nil
}

func (s *SQLiteStorage) FindArtifact(ctx context.Context, groupID, artifactID string, version types.Version) (*Artifact, error) {
	return s.findArtifactWithQuerier(ctx, s.querier(), groupID, artifactID, version)
}

// insertArtifactWithQuerier is the internal implementation that uses a querier.
// Artifacts share their id with the pending entry they were indexed from, so
// the id is never assigned by SQLite.
func (s *SQLiteStorage) insertArtifactWithQuerier(ctx context.Context, q querier, artifact *Artifact) (int64, error) {
	if err := requireVersion(artifact.Version); err != nil {
		return 0, err
	}
	if artifact.ID <= 0 {
		return 0, fmt.Errorf("%w: artifact id must be positive, got %d", types.ErrContractViolation, artifact.ID)
	}
	query := `
		INSERT INTO artifacts (id, group_id, artifact_id, version, artifactory)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		artifact.ID, artifact.GroupID, artifact.ArtifactID,
		artifact.Version.String(), string(artifact.Artifactory))
	if err != nil {
		return 0, wrapWriteError("failed to insert artifact", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	artifact.ID = id
	return id, nil
}

func (s *SQLiteStorage) InsertArtifact(ctx context.Context, artifact *Artifact) (int64, error) {
	return s.insertArtifactWithQuerier(ctx, s.querier(), artifact)
}

// deleteArtifactWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteArtifactWithQuerier(ctx context.Context, q querier, artifact *Artifact) error {
	_, err := q.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, artifact.ID)
	if err != nil {
		return wrapWriteError("failed to delete artifact", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteArtifact(ctx context.Context, artifact *Artifact) error {
	return s.deleteArtifactWithQuerier(ctx, s.querier(), artifact)
}

// Class operations

// insertClassRecordWithQuerier is the internal implementation that uses a querier.
// Re-inserting an already persisted id is ignored and returns that id.
func (s *SQLiteStorage) insertClassRecordWithQuerier(ctx context.Context, q querier, record *ClassRecord) (int64, error) {
	query := `
		INSERT OR IGNORE INTO class_records (id, pkg, name, artifact_id)
		VALUES (?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query, nullableID(record.ID), record.Pkg, record.Name, record.ArtifactID)
	if err != nil {
		return 0, wrapWriteError("failed to insert class record", err)
	}
	return insertedID(result, &record.ID, func() (bool, error) {
		return rowExists(ctx, q, `
			SELECT COUNT(*) FROM class_records
			WHERE id = ? AND pkg = ? AND name = ? AND artifact_id = ?
		`, record.ID, record.Pkg, record.Name, record.ArtifactID)
	})
}

func (s *SQLiteStorage) InsertClassRecord(ctx context.Context, record *ClassRecord) (int64, error) {
	return s.insertClassRecordWithQuerier(ctx, s.querier(), record)
}

// insertedID resolves the id of an INSERT OR IGNORE statement. An ignored
// insert is accepted only when same reports that the persisted row is
// identical; an id reused for different content is a constraint violation.
func insertedID(result sql.Result, id *int64, same func() (bool, error)) (int64, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 && *id > 0 {
		ok, err := same()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("id %d already holds a different record: %w", *id, ErrConstraintViolation)
		}
		return *id, nil
	}
	newID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	*id = newID
	return newID, nil
}

// deleteClassRecordWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteClassRecordWithQuerier(ctx context.Context, q querier, record *ClassRecord) error {
	_, err := q.ExecContext(ctx, `DELETE FROM class_records WHERE id = ?`, record.ID)
	if err != nil {
		return wrapWriteError("failed to delete class record", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteClassRecord(ctx context.Context, record *ClassRecord) error {
	return s.deleteClassRecordWithQuerier(ctx, s.querier(), record)
}

// listClassRecordsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listClassRecordsWithQuerier(ctx context.Context, q querier, artifactID int64) ([]*ClassRecord, error) {
	query := `
		SELECT id, pkg, name, artifact_id
		FROM class_records
		WHERE artifact_id = ?
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, artifactID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := make([]*ClassRecord, 0)
	for rows.Next() {
		var record ClassRecord
		if err := rows.Scan(&record.ID, &record.Pkg, &record.Name, &record.ArtifactID); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) ListClassRecords(ctx context.Context, artifactID int64) ([]*ClassRecord, error) {
	return s.listClassRecordsWithQuerier(ctx, s.querier(), artifactID)
}

// insertClassLookupWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertClassLookupWithQuerier(ctx context.Context, q querier, lookup ClassLookup) error {
	query := `INSERT OR IGNORE INTO class_lookups (identifier, class_id) VALUES (?, ?)`
	if _, err := q.ExecContext(ctx, query, lookup.Identifier, lookup.ClassID); err != nil {
		return wrapWriteError("failed to insert class lookup", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertClassLookup(ctx context.Context, lookup ClassLookup) error {
	return s.insertClassLookupWithQuerier(ctx, s.querier(), lookup)
}

// listClassLookupsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listClassLookupsWithQuerier(ctx context.Context, q querier, classID int64) ([]ClassLookup, error) {
	query := `
		SELECT identifier, class_id
		FROM class_lookups
		WHERE class_id = ?
		ORDER BY length(identifier), identifier
	`
	rows, err := q.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lookups := make([]ClassLookup, 0)
	for rows.Next() {
		var lookup ClassLookup
		if err := rows.Scan(&lookup.Identifier, &lookup.ClassID); err != nil {
			return nil, err
		}
		lookups = append(lookups, lookup)
	}
	return lookups, rows.Err()
}

func (s *SQLiteStorage) ListClassLookups(ctx context.Context, classID int64) ([]ClassLookup, error) {
	return s.listClassLookupsWithQuerier(ctx, s.querier(), classID)
}

// Method operations

func receiverColumns(r *types.Receiver) (sql.NullString, sql.NullString) {
	if r == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: r.Pkg, Valid: true}, sql.NullString{String: r.Name, Valid: true}
}

func receiverFromColumns(pkg, name sql.NullString) *types.Receiver {
	if !pkg.Valid && !name.Valid {
		return nil
	}
	return &types.Receiver{Pkg: pkg.String, Name: name.String}
}

// insertMethodRecordWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertMethodRecordWithQuerier(ctx context.Context, q querier, record *MethodRecord) (int64, error) {
	query := `
		INSERT OR IGNORE INTO method_records (id, name, pkg, receive_pkg, receive_name, artifact_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	receivePkg, receiveName := receiverColumns(record.Receiver)
	result, err := q.ExecContext(ctx, query,
		nullableID(record.ID), record.Name, record.Pkg, receivePkg, receiveName, record.ArtifactID)
	if err != nil {
		return 0, wrapWriteError("failed to insert method record", err)
	}
	return insertedID(result, &record.ID, func() (bool, error) {
		return rowExists(ctx, q, `
			SELECT COUNT(*) FROM method_records
			WHERE id = ? AND name = ? AND pkg = ? AND receive_pkg IS ? AND receive_name IS ? AND artifact_id = ?
		`, record.ID, record.Name, record.Pkg, receivePkg, receiveName, record.ArtifactID)
	})
}

func (s *SQLiteStorage) InsertMethodRecord(ctx context.Context, record *MethodRecord) (int64, error) {
	return s.insertMethodRecordWithQuerier(ctx, s.querier(), record)
}

// deleteMethodRecordWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteMethodRecordWithQuerier(ctx context.Context, q querier, record *MethodRecord) error {
	_, err := q.ExecContext(ctx, `DELETE FROM method_records WHERE id = ?`, record.ID)
	if err != nil {
		return wrapWriteError("failed to delete method record", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteMethodRecord(ctx context.Context, record *MethodRecord) error {
	return s.deleteMethodRecordWithQuerier(ctx, s.querier(), record)
}

// listMethodRecordsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listMethodRecordsWithQuerier(ctx context.Context, q querier, artifactID int64) ([]*MethodRecord, error) {
	query := `
		SELECT id, name, pkg, receive_pkg, receive_name, artifact_id
		FROM method_records
		WHERE artifact_id = ?
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, artifactID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := make([]*MethodRecord, 0)
	for rows.Next() {
		var record MethodRecord
		var receivePkg, receiveName sql.NullString
		if err := rows.Scan(&record.ID, &record.Name, &record.Pkg, &receivePkg, &receiveName, &record.ArtifactID); err != nil {
			return nil, err
		}
		record.Receiver = receiverFromColumns(receivePkg, receiveName)
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) ListMethodRecords(ctx context.Context, artifactID int64) ([]*MethodRecord, error) {
	return s.listMethodRecordsWithQuerier(ctx, s.querier(), artifactID)
}

// insertMethodLookupWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertMethodLookupWithQuerier(ctx context.Context, q querier, lookup MethodLookup) error {
	query := `INSERT OR IGNORE INTO method_lookups (identifier, method_id) VALUES (?, ?)`
	if _, err := q.ExecContext(ctx, query, lookup.Identifier, lookup.MethodID); err != nil {
		return wrapWriteError("failed to insert method lookup", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertMethodLookup(ctx context.Context, lookup MethodLookup) error {
	return s.insertMethodLookupWithQuerier(ctx, s.querier(), lookup)
}

// listMethodLookupsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listMethodLookupsWithQuerier(ctx context.Context, q querier, methodID int64) ([]MethodLookup, error) {
	query := `
		SELECT identifier, method_id
		FROM method_lookups
		WHERE method_id = ?
		ORDER BY identifier
	`
	rows, err := q.QueryContext(ctx, query, methodID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lookups := make([]MethodLookup, 0)
	for rows.Next() {
		var lookup MethodLookup
		if err := rows.Scan(&lookup.Identifier, &lookup.MethodID); err != nil {
			return nil, err
		}
		lookups = append(lookups, lookup)
	}
	return lookups, rows.Err()
}

func (s *SQLiteStorage) ListMethodLookups(ctx context.Context, methodID int64) ([]MethodLookup, error) {
	return s.listMethodLookupsWithQuerier(ctx, s.querier(), methodID)
}

// Search operations

// prefixPattern builds a GLOB pattern matching identifiers that start with
// query. GLOB is case sensitive, so a literal prefix can use the primary key.
func prefixPattern(query string) string {
	var b strings.Builder
	for _, r := range query {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('*')
	return b.String()
}

// searchClassesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) searchClassesWithQuerier(ctx context.Context, q querier, query string) ([]ClassMatch, error) {
	sqlQuery := `
		SELECT MIN(l.identifier), c.id, c.pkg, c.name, c.artifact_id,
		       a.id, a.group_id, a.artifact_id, a.version, a.artifactory
		FROM class_lookups l
		JOIN class_records c ON c.id = l.class_id
		JOIN artifacts a ON a.id = c.artifact_id
		WHERE l.identifier GLOB ?
		GROUP BY c.id
		ORDER BY c.id
	`
	rows, err := q.QueryContext(ctx, sqlQuery, prefixPattern(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search classes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]ClassMatch, 0)
	for rows.Next() {
		var m ClassMatch
		var version, artifactory string
		err := rows.Scan(
			&m.Lookup.Identifier, &m.Class.ID, &m.Class.Pkg, &m.Class.Name, &m.Class.ArtifactID,
			&m.Artifact.ID, &m.Artifact.GroupID, &m.Artifact.ArtifactID, &version, &artifactory,
		)
		if err != nil {
			return nil, err
		}
		if m.Artifact.Version, err = parseStoredVersion(version); err != nil {
			return nil, err
		}
		m.Artifact.Artifactory = types.Artifactory(artifactory)
		m.Lookup.ClassID = m.Class.ID
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *SQLiteStorage) SearchClasses(ctx context.Context, query string) ([]ClassMatch, error) {
	return s.searchClassesWithQuerier(ctx, s.querier(), query)
}

// searchMethodsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) searchMethodsWithQuerier(ctx context.Context, q querier, query string, searchType MethodSearchType) ([]MethodMatch, error) {
	var receiverFilter string
	switch searchType {
	case MethodSearchGlobal:
		receiverFilter = " AND m.receive_name IS NULL"
	case MethodSearchExtension:
		receiverFilter = " AND m.receive_name IS NOT NULL"
	case MethodSearchAny:
	default:
		return nil, fmt.Errorf("unsupported method search type: %d", searchType)
	}

	sqlQuery := `
		SELECT MIN(l.identifier), m.id, m.name, m.pkg, m.receive_pkg, m.receive_name, m.artifact_id,
		       a.id, a.group_id, a.artifact_id, a.version, a.artifactory
		FROM method_lookups l
		JOIN method_records m ON m.id = l.method_id
		JOIN artifacts a ON a.id = m.artifact_id
		WHERE l.identifier GLOB ?` + receiverFilter + `
		GROUP BY m.id
		ORDER BY m.id
	`
	rows, err := q.QueryContext(ctx, sqlQuery, prefixPattern(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search methods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]MethodMatch, 0)
	for rows.Next() {
		var m MethodMatch
		var receivePkg, receiveName sql.NullString
		var version, artifactory string
		err := rows.Scan(
			&m.Lookup.Identifier, &m.Method.ID, &m.Method.Name, &m.Method.Pkg,
			&receivePkg, &receiveName, &m.Method.ArtifactID,
			&m.Artifact.ID, &m.Artifact.GroupID, &m.Artifact.ArtifactID, &version, &artifactory,
		)
		if err != nil {
			return nil, err
		}
		if m.Artifact.Version, err = parseStoredVersion(version); err != nil {
			return nil, err
		}
		m.Artifact.Artifactory = types.Artifactory(artifactory)
		m.Method.Receiver = receiverFromColumns(receivePkg, receiveName)
		m.Lookup.MethodID = m.Method.ID
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *SQLiteStorage) SearchMethods(ctx context.Context, query string, searchType MethodSearchType) ([]MethodMatch, error) {
	return s.searchMethodsWithQuerier(ctx, s.querier(), query, searchType)
}

// Pending artifact operations

const pendingColumns = `id, group_id, artifact_id, version, retries, fetched, artifactory`

func scanPendingArtifact(row rowScanner) (*PendingArtifact, error) {
	var pending PendingArtifact
	var version, artifactory string
	err := row.Scan(&pending.ID, &pending.GroupID, &pending.ArtifactID, &version,
		&pending.Retries, &pending.Fetched, &artifactory)
	if err != nil {
		return nil, err
	}
	v, err := parseStoredVersion(version)
	if err != nil {
		return nil, err
	}
	pending.Version = v
	pending.Artifactory = types.Artifactory(artifactory)
	return &pending, nil
}

// insertPendingArtifactWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertPendingArtifactWithQuerier(ctx context.Context, q querier, pending *PendingArtifact) (int64, error) {
	if err := requireVersion(pending.Version); err != nil {
		return 0, err
	}
	query := `
		INSERT INTO pending_artifacts (id, group_id, artifact_id, version, retries, fetched, artifactory)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		nullableID(pending.ID), pending.GroupID, pending.ArtifactID, pending.Version.String(),
		pending.Retries, pending.Fetched, string(pending.Artifactory))
	if err != nil {
		return 0, wrapWriteError("failed to insert pending artifact", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	pending.ID = id
	return id, nil
}

func (s *SQLiteStorage) InsertPendingArtifact(ctx context.Context, pending *PendingArtifact) (int64, error) {
	return s.insertPendingArtifactWithQuerier(ctx, s.querier(), pending)
}

// findPendingArtifactWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) findPendingArtifactWithQuerier(ctx context.Context, q querier, groupID, artifactID string, version types.Version) (*PendingArtifact, error) {
	query := `SELECT ` + pendingColumns + `
		FROM pending_artifacts
		WHERE group_id = ? AND artifact_id = ? AND version = ?
	`
	pending, err := scanPendingArtifact(q.QueryRowContext(ctx, query, groupID, artifactID, version.String()))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending artifact: %w", err)
	}
	return pending, nil
}

func (s *SQLiteStorage) FindPendingArtifact(ctx context.Context, groupID, artifactID string, version types.Version) (*PendingArtifact, error) {
	return s.findPendingArtifactWithQuerier(ctx, s.querier(), groupID, artifactID, version)
}

// findNextPendingArtifactWithQuerier is the internal implementation that uses a querier.
// Entries with fewer retries come first, then the oldest.
func (s *SQLiteStorage) findNextPendingArtifactWithQuerier(ctx context.Context, q querier, excludeIDs []int64) (*PendingArtifact, error) {
	query := `SELECT ` + pendingColumns + `
		FROM pending_artifacts
		WHERE fetched = 0`
	var args []interface{}
	if len(excludeIDs) > 0 {
		// One argument regardless of size; SQLite caps bound variables
		encoded, err := json.Marshal(excludeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode excluded ids: %w", err)
		}
		query += ` AND id NOT IN (SELECT value FROM json_each(?))`
		args = append(args, string(encoded))
	}
	query += ` ORDER BY retries ASC, id ASC LIMIT 1`

	pending, err := scanPendingArtifact(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next pending artifact: %w", err)
	}
	return pending, nil
}

func (s *SQLiteStorage) FindNextPendingArtifact(ctx context.Context, excludeIDs []int64) (*PendingArtifact, error) {
	return s.findNextPendingArtifactWithQuerier(ctx, s.querier(), excludeIDs)
}

// updatePendingWithQuerier runs a single-row update and reports ErrNotFound
// when the id does not exist
func (s *SQLiteStorage) updatePendingWithQuerier(ctx context.Context, q querier, op, query string, id int64) error {
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return wrapWriteError(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s: pending artifact %d: %w", op, id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStorage) incrementPendingArtifactRetryWithQuerier(ctx context.Context, q querier, id int64) error {
	return s.updatePendingWithQuerier(ctx, q, "failed to increment retries",
		`UPDATE pending_artifacts SET retries = retries + 1 WHERE id = ?`, id)
}

func (s *SQLiteStorage) IncrementPendingArtifactRetry(ctx context.Context, id int64) error {
	return s.incrementPendingArtifactRetryWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) markPendingArtifactFetchedWithQuerier(ctx context.Context, q querier, id int64) error {
	return s.updatePendingWithQuerier(ctx, q, "failed to mark fetched",
		`UPDATE pending_artifacts SET fetched = 1 WHERE id = ?`, id)
}

func (s *SQLiteStorage) MarkPendingArtifactFetched(ctx context.Context, id int64) error {
	return s.markPendingArtifactFetchedWithQuerier(ctx, s.querier(), id)
}

// Maintenance operations

func (s *SQLiteStorage) execWithQuerier(ctx context.Context, q querier, query string, args ...interface{}) error {
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return wrapWriteError("failed to execute statement", err)
	}
	return nil
}

// Exec runs a raw statement. It is the escape hatch for store maintenance.
func (s *SQLiteStorage) Exec(ctx context.Context, query string, args ...interface{}) error {
	return s.execWithQuerier(ctx, s.querier(), query, args...)
}

func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	return currentSchemaVersion(ctx, s.querier())
}

// Sync folds the write-ahead log into the main database file
func (s *SQLiteStorage) Sync(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint wal: %w", err)
	}
	return nil
}

// getStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{StorageLocation: s.location}

	query := `
		SELECT
			(SELECT COUNT(*) FROM artifacts),
			(SELECT COUNT(*) FROM class_records),
			(SELECT COUNT(*) FROM class_lookups),
			(SELECT COUNT(*) FROM method_records),
			(SELECT COUNT(*) FROM method_lookups),
			(SELECT COUNT(*) FROM pending_artifacts),
			(SELECT COUNT(*) FROM pending_artifacts WHERE fetched = 1)
	`
	err := q.QueryRowContext(ctx, query).Scan(
		&status.Artifacts, &status.Classes, &status.ClassLookups,
		&status.Methods, &status.MethodLookups,
		&status.PendingTotal, &status.PendingFetched,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	version, err := currentSchemaVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version

	// Calculate database size
	var pageCount, pageSize int64
	err = q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeBytes = pageCount * pageSize
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}
