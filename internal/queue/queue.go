// Package queue tracks artifacts awaiting fetch with retry counting and
// claim exclusion.
//
// Next is advisory: two callers that do not share their exclusion lists can
// select the same entry. Workers that share one Queue value can use Claim
// and Release instead, which exclude every id currently held through that
// value. Claims never cross process boundaries; the indexer's already-indexed
// check keeps duplicate work harmless.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Hazer/ArtifactFinder/internal/metrics"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// Queue is the pending-work queue over storage
type Queue struct {
	storage storage.Storage
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	held map[int64]struct{}
}

// New creates a new Queue. logger and m may be nil.
func New(s storage.Storage, logger *zap.Logger, m *metrics.Metrics) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		storage: s,
		logger:  logger,
		metrics: m,
		held:    make(map[int64]struct{}),
	}
}

// Add enqueues a coordinate. It returns false when the coordinate is
// already pending or was already fetched.
func (q *Queue) Add(ctx context.Context, groupID, artifactID string, version types.Version, artifactory types.Artifactory) (bool, error) {
	if strings.TrimSpace(groupID) == "" || strings.TrimSpace(artifactID) == "" {
		return false, fmt.Errorf("%w: group and artifact id are required", types.ErrContractViolation)
	}
	if version.IsZero() {
		return false, fmt.Errorf("%w: version is required", types.ErrInvalidVersion)
	}
	if artifactory == "" {
		artifactory = types.ArtifactoryMaven
	}

	added := false
	err := storage.WithTx(ctx, q.storage, func(tx storage.Tx) error {
		_, err := tx.FindPendingArtifact(ctx, groupID, artifactID, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		_, err = tx.InsertPendingArtifact(ctx, &storage.PendingArtifact{
			GroupID:     groupID,
			ArtifactID:  artifactID,
			Version:     version,
			Artifactory: artifactory,
		})
		if err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to add pending artifact: %w", err)
	}

	q.metrics.RecordPendingAdded(added)
	if added {
		q.logger.Debug("pending artifact added",
			zap.String("group_id", groupID),
			zap.String("artifact_id", artifactID),
			zap.Stringer("version", version),
		)
	}
	return added, nil
}

// Next returns the next not-fetched entry whose id is not excluded. ok is
// false when nothing is eligible.
func (q *Queue) Next(ctx context.Context, excludeIDs []int64) (*storage.PendingArtifact, bool, error) {
	pending, err := q.storage.FindNextPendingArtifact(ctx, excludeIDs)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return pending, true, nil
}

// IncrementRetry records a failed attempt for the entry
func (q *Queue) IncrementRetry(ctx context.Context, pending *storage.PendingArtifact) error {
	if pending == nil || pending.ID <= 0 {
		return fmt.Errorf("%w: pending artifact has no persisted id", types.ErrContractViolation)
	}
	if err := q.storage.IncrementPendingArtifactRetry(ctx, pending.ID); err != nil {
		return err
	}
	q.metrics.RecordRetry()
	return nil
}

// Claim returns the next entry not excluded and not held by another claim
// on this Queue, and holds it until Release.
func (q *Queue) Claim(ctx context.Context, excludeIDs []int64) (*storage.PendingArtifact, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	exclude := make([]int64, 0, len(excludeIDs)+len(q.held))
	exclude = append(exclude, excludeIDs...)
	for id := range q.held {
		exclude = append(exclude, id)
	}
	sort.Slice(exclude, func(i, j int) bool { return exclude[i] < exclude[j] })

	pending, ok, err := q.Next(ctx, exclude)
	if err != nil || !ok {
		return nil, ok, err
	}
	q.held[pending.ID] = struct{}{}
	return pending, true, nil
}

// Release gives up a claim taken with Claim
func (q *Queue) Release(id int64) {
	q.mu.Lock()
	delete(q.held, id)
	q.mu.Unlock()
}

// Held returns the number of outstanding claims
func (q *Queue) Held() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.held)
}
