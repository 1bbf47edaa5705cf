package storage

import (
	"context"

	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// Storage defines the interface for persisting and querying the artifact index.
// Every operation runs standalone or inside a transaction obtained from BeginTx.
type Storage interface {
	// Artifact operations
	FindArtifact(ctx context.Context, groupID, artifactID string, version types.Version) (*Artifact, error)
	// InsertArtifact requires a positive ID, the id of the pending entry
	// the artifact was indexed from
	InsertArtifact(ctx context.Context, artifact *Artifact) (int64, error)
	DeleteArtifact(ctx context.Context, artifact *Artifact) error

	// Class operations
	InsertClassRecord(ctx context.Context, record *ClassRecord) (int64, error)
	DeleteClassRecord(ctx context.Context, record *ClassRecord) error
	ListClassRecords(ctx context.Context, artifactID int64) ([]*ClassRecord, error)
	InsertClassLookup(ctx context.Context, lookup ClassLookup) error
	ListClassLookups(ctx context.Context, classID int64) ([]ClassLookup, error)

	// Method operations
	InsertMethodRecord(ctx context.Context, record *MethodRecord) (int64, error)
	DeleteMethodRecord(ctx context.Context, record *MethodRecord) error
	ListMethodRecords(ctx context.Context, artifactID int64) ([]*MethodRecord, error)
	InsertMethodLookup(ctx context.Context, lookup MethodLookup) error
	ListMethodLookups(ctx context.Context, methodID int64) ([]MethodLookup, error)

	// Search operations
	SearchClasses(ctx context.Context, query string) ([]ClassMatch, error)
	SearchMethods(ctx context.Context, query string, searchType MethodSearchType) ([]MethodMatch, error)

	// Pending artifact operations
	InsertPendingArtifact(ctx context.Context, pending *PendingArtifact) (int64, error)
	FindPendingArtifact(ctx context.Context, groupID, artifactID string, version types.Version) (*PendingArtifact, error)
	FindNextPendingArtifact(ctx context.Context, excludeIDs []int64) (*PendingArtifact, error)
	IncrementPendingArtifactRetry(ctx context.Context, id int64) error
	MarkPendingArtifactFetched(ctx context.Context, id int64) error

	// Maintenance operations
	Exec(ctx context.Context, query string, args ...interface{}) error
	SchemaVersion(ctx context.Context) (int, error)
	Sync(ctx context.Context) error
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Artifact is a fully indexed package coordinate
type Artifact struct {
	ID          int64
	GroupID     string
	ArtifactID  string
	Version     types.Version
	Artifactory types.Artifactory
}

// Coordinate returns the artifact's remote coordinate
func (a *Artifact) Coordinate() types.Coordinate {
	return types.Coordinate{
		GroupID:     a.GroupID,
		ArtifactID:  a.ArtifactID,
		Version:     a.Version,
		Artifactory: a.Artifactory,
	}
}

// PendingArtifact is a unit of crawl work that has not been indexed yet
type PendingArtifact struct {
	ID          int64
	GroupID     string
	ArtifactID  string
	Version     types.Version
	Retries     int
	Fetched     bool
	Artifactory types.Artifactory
}

// Coordinate returns the pending artifact's remote coordinate
func (p *PendingArtifact) Coordinate() types.Coordinate {
	return types.Coordinate{
		GroupID:     p.GroupID,
		ArtifactID:  p.ArtifactID,
		Version:     p.Version,
		Artifactory: p.Artifactory,
	}
}

// ToArtifact derives the Artifact row that indexing this entry produces.
// The artifact reuses the pending entry's ID.
func (p *PendingArtifact) ToArtifact() *Artifact {
	return &Artifact{
		ID:          p.ID,
		GroupID:     p.GroupID,
		ArtifactID:  p.ArtifactID,
		Version:     p.Version,
		Artifactory: p.Artifactory,
	}
}

// ClassRecord is a class owned by an artifact
type ClassRecord struct {
	ID         int64
	Pkg        string
	Name       string // Nested classes separated by '$'
	ArtifactID int64
}

// ClassLookup is a lower-cased search key pointing at a class
type ClassLookup struct {
	Identifier string
	ClassID    int64
}

// MethodRecord is a global or extension method owned by an artifact
type MethodRecord struct {
	ID         int64
	Name       string
	Pkg        string
	Receiver   *types.Receiver // Nullable - nil for global methods
	ArtifactID int64
}

// MethodLookup is a lower-cased search key pointing at a method
type MethodLookup struct {
	Identifier string
	MethodID   int64
}

// MethodSearchType restricts method search by receiver presence
type MethodSearchType int

const (
	MethodSearchGlobal    MethodSearchType = iota + 1 // Methods without receiver
	MethodSearchExtension                             // Methods with receiver
	MethodSearchAny                                   // Both
)

// String returns a readable name for logs
func (t MethodSearchType) String() string {
	switch t {
	case MethodSearchGlobal:
		return "global"
	case MethodSearchExtension:
		return "extension"
	case MethodSearchAny:
		return "any"
	}
	return "unknown"
}

// MethodSearchTypeFor derives the method search type from inclusion flags.
// ok is false when neither kind is requested and method search must be skipped.
func MethodSearchTypeFor(includeGlobal, includeExtension bool) (MethodSearchType, bool) {
	switch {
	case includeGlobal && includeExtension:
		return MethodSearchAny, true
	case includeGlobal:
		return MethodSearchGlobal, true
	case includeExtension:
		return MethodSearchExtension, true
	}
	return 0, false
}

// ClassMatch joins a matching lookup with its class and artifact
type ClassMatch struct {
	Lookup   ClassLookup
	Class    ClassRecord
	Artifact Artifact
}

// MethodMatch joins a matching lookup with its method and artifact
type MethodMatch struct {
	Lookup   MethodLookup
	Method   MethodRecord
	Artifact Artifact
}

// ToSearchRecord converts a class match into a query result
func (m ClassMatch) ToSearchRecord() types.SearchRecord {
	return types.SearchRecord{
		Kind:       types.KindClass,
		Pkg:        m.Class.Pkg,
		Name:       m.Class.Name,
		Identifier: m.Lookup.Identifier,
		Artifact:   m.Artifact.Coordinate(),
	}
}

// ToSearchRecord converts a method match into a query result
func (m MethodMatch) ToSearchRecord() types.SearchRecord {
	return types.SearchRecord{
		Kind:       types.KindMethod,
		Pkg:        m.Method.Pkg,
		Name:       m.Method.Name,
		Receiver:   m.Method.Receiver,
		Identifier: m.Lookup.Identifier,
		Artifact:   m.Artifact.Coordinate(),
	}
}

// Status contains statistics about the index
type Status struct {
	Artifacts       int
	Classes         int
	ClassLookups    int
	Methods         int
	MethodLookups   int
	PendingTotal    int
	PendingFetched  int
	SchemaVersion   int
	SizeBytes       int64
	StorageLocation string
}

// PendingRemaining returns the number of pending artifacts not yet fetched
func (s *Status) PendingRemaining() int {
	return s.PendingTotal - s.PendingFetched
}
