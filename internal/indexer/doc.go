// Package indexer turns a parsed artifact into searchable index rows.
//
// # Basic Usage
//
//	idx := indexer.New(db, logger, metrics)
//
//	result, err := idx.SaveParsedArtifact(ctx, pending, info)
//	if err != nil {
//	    return err // nothing was written
//	}
//	fmt.Printf("Indexed %d classes, %d methods in %v\n",
//	    result.Classes, result.Methods, result.Duration)
//
// # Indexing Pipeline
//
// SaveParsedArtifact runs as one transaction:
//
//  1. Skip: an artifact with the same group, artifact and version is already indexed
//  2. Check: the pending entry must have a persisted id (ErrContractViolation otherwise)
//  3. Insert the artifact row, reusing the pending entry's id
//  4. Insert each class record with its suffix lookups
//  5. Insert each method record with one lookup
//  6. Mark the pending entry fetched
//
// Any failure rolls back the whole artifact, so queries never observe a
// partially indexed artifact and the pending entry stays eligible for retry.
//
// # Lookup Identifiers
//
// A class named Foo$Bar$Baz is reachable through three lower-cased keys:
//
//	baz
//	bar$baz
//	foo$bar$baz
//
// Methods are not nested and get exactly one key, their lower-cased name.
package indexer
