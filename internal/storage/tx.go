package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// sqliteTx implements the Tx interface
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// Transaction methods delegate to the storage implementation with the tx querier

func (t *sqliteTx) FindArtifact(ctx context.Context, groupID, artifactID string, version types.Version) (*Artifact, error) {
	return t.storage.findArtifactWithQuerier(ctx, t.querier(), groupID, artifactID, version)
}

func (t *sqliteTx) InsertArtifact(ctx context.Context, artifact *Artifact) (int64, error) {
	return t.storage.insertArtifactWithQuerier(ctx, t.querier(), artifact)
}

func (t *sqliteTx) DeleteArtifact(ctx context.Context, artifact *Artifact) error {
	return t.storage.deleteArtifactWithQuerier(ctx, t.querier(), artifact)
}

func (t *sqliteTx) InsertClassRecord(ctx context.Context, record *ClassRecord) (int64, error) {
	return t.storage.insertClassRecordWithQuerier(ctx, t.querier(), record)
}

func (t *sqliteTx) DeleteClassRecord(ctx context.Context, record *ClassRecord) error {
	return t.storage.deleteClassRecordWithQuerier(ctx, t.querier(), record)
}

func (t *sqliteTx) ListClassRecords(ctx context.Context, artifactID int64) ([]*ClassRecord, error) {
	return t.storage.listClassRecordsWithQuerier(ctx, t.querier(), artifactID)
}

func (t *sqliteTx) InsertClassLookup(ctx context.Context, lookup ClassLookup) error {
	return t.storage.insertClassLookupWithQuerier(ctx, t.querier(), lookup)
}

func (t *sqliteTx) ListClassLookups(ctx context.Context, classID int64) ([]ClassLookup, error) {
	return t.storage.listClassLookupsWithQuerier(ctx, t.querier(), classID)
}

func (t *sqliteTx) InsertMethodRecord(ctx context.Context, record *MethodRecord) (int64, error) {
	return t.storage.insertMethodRecordWithQuerier(ctx, t.querier(), record)
}

func (t *sqliteTx) DeleteMethodRecord(ctx context.Context, record *MethodRecord) error {
	return t.storage.deleteMethodRecordWithQuerier(ctx, t.querier(), record)
}

func (t *sqliteTx) ListMethodRecords(ctx context.Context, artifactID int64) ([]*MethodRecord, error) {
	return t.storage.listMethodRecordsWithQuerier(ctx, t.querier(), artifactID)
}

func (t *sqliteTx) InsertMethodLookup(ctx context.Context, lookup MethodLookup) error {
	return t.storage.insertMethodLookupWithQuerier(ctx, t.querier(), lookup)
}

func (t *sqliteTx) ListMethodLookups(ctx context.Context, methodID int64) ([]MethodLookup, error) {
	return t.storage.listMethodLookupsWithQuerier(ctx, t.querier(), methodID)
}

func (t *sqliteTx) SearchClasses(ctx context.Context, query string) ([]ClassMatch, error) {
	return t.storage.searchClassesWithQuerier(ctx, t.querier(), query)
}

func (t *sqliteTx) SearchMethods(ctx context.Context, query string, searchType MethodSearchType) ([]MethodMatch, error) {
	return t.storage.searchMethodsWithQuerier(ctx, t.querier(), query, searchType)
}

func (t *sqliteTx) InsertPendingArtifact(ctx context.Context, pending *PendingArtifact) (int64, error) {
	return t.storage.insertPendingArtifactWithQuerier(ctx, t.querier(), pending)
}

func (t *sqliteTx) FindPendingArtifact(ctx context.Context, groupID, artifactID string, version types.Version) (*PendingArtifact, error) {
	return t.storage.findPendingArtifactWithQuerier(ctx, t.querier(), groupID, artifactID, version)
}

func (t *sqliteTx) FindNextPendingArtifact(ctx context.Context, excludeIDs []int64) (*PendingArtifact, error) {
	return t.storage.findNextPendingArtifactWithQuerier(ctx, t.querier(), excludeIDs)
}

func (t *sqliteTx) IncrementPendingArtifactRetry(ctx context.Context, id int64) error {
	return t.storage.incrementPendingArtifactRetryWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) MarkPendingArtifactFetched(ctx context.Context, id int64) error {
	return t.storage.markPendingArtifactFetchedWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) Exec(ctx context.Context, query string, args ...interface{}) error {
	return t.storage.execWithQuerier(ctx, t.querier(), query, args...)
}

func (t *sqliteTx) SchemaVersion(ctx context.Context) (int, error) {
	return currentSchemaVersion(ctx, t.querier())
}

// Sync cannot checkpoint while the transaction holds the write lock
func (t *sqliteTx) Sync(ctx context.Context) error {
	return ErrInTransaction
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

// Close is a no-op for transactions
func (t *sqliteTx) Close() error {
	return nil
}

// BeginTx is not supported for nested transactions
func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions: %w", ErrInTransaction)
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic. When s is already a Tx, fn joins it and the
// caller keeps ownership of commit and rollback.
func WithTx(ctx context.Context, s Storage, fn func(tx Tx) error) (err error) {
	if outer, ok := s.(Tx); ok {
		return fn(outer)
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
