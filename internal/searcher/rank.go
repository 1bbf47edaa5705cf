package searcher

import (
	"sort"
	"strings"

	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// Relevance tiers, lower is better
const (
	tierExact = iota
	tierExactSimple
	tierExactFold
	tierIdentifier
	tierPartial
)

// Rank orders records by relevance to the literal query. Exact name matches
// come first (full name before innermost nested name), then case-insensitive
// name matches, then exact lookup key matches, then prefix matches. Ties are
// broken by name, package, group, artifact, newest version and kind, so equal
// inputs give equal output.
// The input slice is not modified.
func Rank(query string, records []types.SearchRecord) []types.SearchRecord {
	literal := strings.TrimSpace(query)
	sanitized := Sanitize(query)

	type scored struct {
		record types.SearchRecord
		tier   int
	}
	items := make([]scored, len(records))
	for i, r := range records {
		items[i] = scored{record: r, tier: relevanceTier(literal, sanitized, r)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].tier != items[j].tier {
			return items[i].tier < items[j].tier
		}
		return lessRecord(items[i].record, items[j].record)
	})

	ranked := make([]types.SearchRecord, len(items))
	for i, item := range items {
		ranked[i] = item.record
	}
	return ranked
}

func relevanceTier(literal, sanitized string, r types.SearchRecord) int {
	if r.QualifiedName() == literal || r.Name == literal {
		return tierExact
	}
	if r.SimpleName() == literal {
		return tierExactSimple
	}
	names := []string{r.QualifiedName(), r.SimpleName(), r.Name}
	for _, name := range names {
		if strings.EqualFold(name, literal) {
			return tierExactFold
		}
	}
	if r.Identifier == sanitized {
		return tierIdentifier
	}
	return tierPartial
}

func lessRecord(a, b types.SearchRecord) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Pkg != b.Pkg {
		return a.Pkg < b.Pkg
	}
	if a.Artifact.GroupID != b.Artifact.GroupID {
		return a.Artifact.GroupID < b.Artifact.GroupID
	}
	if a.Artifact.ArtifactID != b.Artifact.ArtifactID {
		return a.Artifact.ArtifactID < b.Artifact.ArtifactID
	}
	if c := a.Artifact.Version.Compare(b.Artifact.Version); c != 0 {
		return c > 0 // newest first
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	ar, br := receiverKey(a.Receiver), receiverKey(b.Receiver)
	if ar != br {
		return ar < br
	}
	return a.Artifact.Artifactory < b.Artifact.Artifactory
}

func receiverKey(r *types.Receiver) string {
	if r == nil {
		return ""
	}
	return r.Pkg + "." + r.Name
}
