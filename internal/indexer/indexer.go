package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Hazer/ArtifactFinder/internal/metrics"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// Indexer turns parsed artifacts into searchable rows: artifact -> records -> lookups
type Indexer struct {
	storage storage.Storage
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Result contains statistics about one indexing operation
type Result struct {
	Skipped       bool // Artifact was already indexed, nothing written
	ArtifactID    int64
	Classes       int
	ClassLookups  int
	Methods       int
	MethodLookups int
	Duration      time.Duration
}

// New creates a new Indexer instance. logger and m may be nil.
func New(s storage.Storage, logger *zap.Logger, m *metrics.Metrics) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		storage: s,
		logger:  logger,
		metrics: m,
	}
}

// SaveParsedArtifact writes the artifact, its classes and methods with their
// lookups, and marks the pending entry fetched, all in one transaction.
// An artifact that is already indexed is skipped without error.
func (idx *Indexer) SaveParsedArtifact(ctx context.Context, pending *storage.PendingArtifact, info *types.ParsedArtifactInfo) (*Result, error) {
	if pending == nil {
		return nil, fmt.Errorf("%w: pending artifact is nil", types.ErrContractViolation)
	}
	if info == nil {
		info = &types.ParsedArtifactInfo{}
	}

	startTime := time.Now()
	result := &Result{}

	err := storage.WithTx(ctx, idx.storage, func(tx storage.Tx) error {
		*result = Result{}
		return idx.saveWithTx(ctx, tx, pending, info, result)
	})
	result.Duration = time.Since(startTime)

	coordinate := zap.Stringer("artifact", pending.Coordinate())
	if err != nil {
		idx.metrics.RecordIndexError()
		idx.logger.Warn("indexing failed", coordinate, zap.Int64("pending_id", pending.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to index %s: %w", pending.Coordinate(), err)
	}

	if result.Skipped {
		idx.metrics.RecordIndexSkipped()
		idx.logger.Debug("artifact already indexed", coordinate)
		return result, nil
	}

	idx.metrics.RecordIndexed(result.Duration, result.ClassLookups, result.MethodLookups)
	idx.logger.Info("artifact indexed",
		coordinate,
		zap.Int("classes", result.Classes),
		zap.Int("methods", result.Methods),
		zap.Int("lookups", result.ClassLookups+result.MethodLookups),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (idx *Indexer) saveWithTx(ctx context.Context, tx storage.Tx, pending *storage.PendingArtifact, info *types.ParsedArtifactInfo, result *Result) error {
	existing, err := tx.FindArtifact(ctx, pending.GroupID, pending.ArtifactID, pending.Version)
	if err == nil {
		result.Skipped = true
		result.ArtifactID = existing.ID
		return nil
	}
	if err != storage.ErrNotFound {
		return err
	}

	if pending.ID <= 0 {
		return fmt.Errorf("%w: pending artifact %s has no persisted id", types.ErrContractViolation, pending.Coordinate())
	}

	artifactID, err := tx.InsertArtifact(ctx, pending.ToArtifact())
	if err != nil {
		return err
	}
	result.ArtifactID = artifactID

	for _, class := range info.Classes {
		classID, err := tx.InsertClassRecord(ctx, &storage.ClassRecord{
			Pkg:        class.Pkg,
			Name:       class.Name,
			ArtifactID: artifactID,
		})
		if err != nil {
			return fmt.Errorf("class %s.%s: %w", class.Pkg, class.Name, err)
		}
		result.Classes++

		for _, identifier := range ClassLookupIdentifiers(class.Name) {
			if err := tx.InsertClassLookup(ctx, storage.ClassLookup{Identifier: identifier, ClassID: classID}); err != nil {
				return fmt.Errorf("class lookup %q: %w", identifier, err)
			}
			result.ClassLookups++
		}
	}

	for _, method := range info.Methods {
		methodID, err := tx.InsertMethodRecord(ctx, &storage.MethodRecord{
			Name:       method.Name,
			Pkg:        method.Pkg,
			Receiver:   method.Receiver,
			ArtifactID: artifactID,
		})
		if err != nil {
			return fmt.Errorf("method %s.%s: %w", method.Pkg, method.Name, err)
		}
		result.Methods++

		if err := tx.InsertMethodLookup(ctx, storage.MethodLookup{Identifier: MethodLookupIdentifier(method.Name), MethodID: methodID}); err != nil {
			return fmt.Errorf("method lookup %q: %w", method.Name, err)
		}
		result.MethodLookups++
	}

	return tx.MarkPendingArtifactFetched(ctx, pending.ID)
}

// ClassLookupIdentifiers returns the search keys for a class name: one per
// trailing run of '$' separated segments, lower-cased, shortest first.
// Foo$Bar$Baz yields baz, bar$baz and foo$bar$baz.
func ClassLookupIdentifiers(name string) []string {
	pieces := strings.Split(strings.ToLower(name), types.NestingSeparator)
	identifiers := make([]string, 0, len(pieces))
	for i := len(pieces) - 1; i >= 0; i-- {
		identifiers = append(identifiers, strings.Join(pieces[i:], types.NestingSeparator))
	}
	return identifiers
}

// MethodLookupIdentifier returns the single search key for a method name
func MethodLookupIdentifier(name string) string {
	return strings.ToLower(name)
}
