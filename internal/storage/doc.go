// Package storage provides SQLite-based persistence for the artifact index.
//
// The storage layer manages:
//   - Indexed artifacts (group, artifact, version, artifactory)
//   - Class and method records owned by an artifact
//   - Lower-cased lookup identifiers pointing at records
//   - The pending artifact crawl queue
//
// # Database Schema
//
// Tables:
//   - artifacts: Indexed coordinates, unique per (group, artifact, version)
//   - pending_artifacts: Crawl queue with retry counters and fetched flag
//   - class_records, method_records: Symbols, cascading from their artifact
//   - class_lookups, method_lookups: Search keys, cascading from their record
//
// The schema version is stamped in PRAGMA user_version and migrations run
// step by step when a store is opened. A store stamped with a newer version
// is refused with ErrIncompatibleSchema.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.artifactfinder/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	matches, err := db.SearchClasses(ctx, "recyclerview")
//
// # Transactions
//
// WithTx commits when the callback succeeds and rolls back otherwise:
//
//	err := storage.WithTx(ctx, db, func(tx storage.Tx) error {
//	    id, err := tx.InsertArtifact(ctx, pending.ToArtifact())
//	    if err != nil {
//	        return err
//	    }
//	    _, err = tx.InsertClassRecord(ctx, &storage.ClassRecord{ArtifactID: id, Pkg: pkg, Name: name})
//	    return err
//	})
//
// Writes that break a foreign key or uniqueness rule fail with an error
// wrapping ErrConstraintViolation and leave no row behind.
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler.
// Building with the sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo"
package storage
