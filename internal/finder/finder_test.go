package finder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hazer/ArtifactFinder/internal/config"
	"github.com/Hazer/ArtifactFinder/internal/metrics"
	"github.com/Hazer/ArtifactFinder/internal/searcher"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

func setupTestFinder(t *testing.T) *Finder {
	cfg := config.Default()
	cfg.Storage.Path = storage.MemoryLocation

	f, err := Open(cfg, nil, metrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func classesOnly(query string) searcher.SearchParams {
	return searcher.SearchParams{Query: query, IncludeClasses: true}
}

func TestExampleScenario(t *testing.T) {
	f := setupTestFinder(t)
	ctx := context.Background()
	version := types.MustParseVersion("1.0.0")

	added, err := f.AddPendingArtifact(ctx, "com.example", "lib", version, types.ArtifactoryMaven)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = f.AddPendingArtifact(ctx, "com.example", "lib", version, types.ArtifactoryMaven)
	require.NoError(t, err)
	assert.False(t, added)

	status, err := f.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.PendingTotal)

	pending, ok, err := f.FindNextPendingArtifact(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	result, err := f.SaveParsedArtifact(ctx, pending, &types.ParsedArtifactInfo{
		Classes: []types.ClassInfo{{Pkg: "com.example", Name: "Outer$Inner"}},
		Methods: []types.MethodInfo{{Pkg: "com.example", Name: "doWork"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	for _, query := range []string{"inner", "outer$inner", "Outer.Inner"} {
		records, err := f.Search(ctx, classesOnly(query))
		require.NoError(t, err, query)
		require.Len(t, records, 1, query)
		assert.Equal(t, "Outer$Inner", records[0].Name)
		assert.Equal(t, "lib", records[0].Artifact.ArtifactID)
	}

	records, err := f.Search(ctx, searcher.SearchParams{Query: "dowork", IncludeGlobalMethods: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.KindMethod, records[0].Kind)
	assert.Equal(t, "doWork", records[0].Name)

	records, err = f.Search(ctx, searcher.SearchParams{Query: "dowork", IncludeExtensionMethods: true})
	require.NoError(t, err)
	assert.Empty(t, records)

	_, ok, err = f.FindNextPendingArtifact(ctx, nil)
	require.NoError(t, err)
	assert.False(t, ok, "fetched entry is no longer eligible")
}

func TestSaveParsedArtifact_InvalidatesCache(t *testing.T) {
	f := setupTestFinder(t)
	ctx := context.Background()
	version := types.MustParseVersion("2.1.0")

	records, err := f.Search(ctx, classesOnly("widget"))
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = f.AddPendingArtifact(ctx, "org.ui", "widgets", version, types.ArtifactoryGoogle)
	require.NoError(t, err)
	pending, ok, err := f.FindNextPendingArtifact(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.SaveParsedArtifact(ctx, pending, &types.ParsedArtifactInfo{
		Classes: []types.ClassInfo{{Pkg: "org.ui", Name: "Widget"}},
	})
	require.NoError(t, err)

	records, err = f.Search(ctx, classesOnly("widget"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.ArtifactoryGoogle, records[0].Artifact.Artifactory)

	// Second save is a no-op
	result, err := f.SaveParsedArtifact(ctx, pending, &types.ParsedArtifactInfo{
		Classes: []types.ClassInfo{{Pkg: "org.ui", Name: "Widget"}},
	})
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	status, err := f.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Classes)
}

func TestSearch_ClampsLimit(t *testing.T) {
	f := setupTestFinder(t)
	ctx := context.Background()
	f.Config().Search.DefaultLimit = 2
	f.Config().Search.MaxLimit = 3

	_, err := f.AddPendingArtifact(ctx, "com.example", "many", types.MustParseVersion("1.0.0"), types.ArtifactoryMaven)
	require.NoError(t, err)
	pending, _, err := f.FindNextPendingArtifact(ctx, nil)
	require.NoError(t, err)

	info := &types.ParsedArtifactInfo{}
	for _, name := range []string{"Item", "ItemA", "ItemB", "ItemC", "ItemD"} {
		info.Classes = append(info.Classes, types.ClassInfo{Pkg: "com.example", Name: name})
	}
	_, err = f.SaveParsedArtifact(ctx, pending, info)
	require.NoError(t, err)

	records, err := f.Search(ctx, classesOnly("item"))
	require.NoError(t, err)
	assert.Len(t, records, 2, "default limit")

	params := classesOnly("item")
	params.Limit = 100
	records, err = f.Search(ctx, params)
	require.NoError(t, err)
	assert.Len(t, records, 3, "max limit")
	assert.Equal(t, "Item", records[0].Name, "exact match ranks first")
}

func TestRetryAndNext(t *testing.T) {
	f := setupTestFinder(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second"} {
		_, err := f.AddPendingArtifact(ctx, "com.example", id, types.MustParseVersion("1.0.0"), types.ArtifactoryMaven)
		require.NoError(t, err)
	}

	first, ok, err := f.FindNextPendingArtifact(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", first.ArtifactID)

	require.NoError(t, f.IncrementPendingArtifactRetry(ctx, first))

	next, ok, err := f.FindNextPendingArtifact(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", next.ArtifactID, "fewer retries first")

	_, ok, err = f.FindNextPendingArtifact(ctx, []int64{first.ID, next.ID})
	require.NoError(t, err)
	assert.False(t, ok)
}

type staticFetcher struct{}

func (staticFetcher) Fetch(ctx context.Context, c types.Coordinate) ([]byte, error) {
	return []byte(c.ArtifactID), nil
}

type staticParser struct{}

func (staticParser) Parse(ctx context.Context, c types.Coordinate, data []byte) (*types.ParsedArtifactInfo, error) {
	return &types.ParsedArtifactInfo{
		Classes: []types.ClassInfo{{Pkg: c.GroupID, Name: "Entry$" + string(data)}},
	}, nil
}

func TestNewCrawler(t *testing.T) {
	f := setupTestFinder(t)
	ctx := context.Background()
	f.Config().Crawler.InitialBackoff = time.Millisecond
	f.Config().Crawler.MaxBackoff = time.Millisecond

	for _, id := range []string{"alpha", "beta"} {
		_, err := f.AddPendingArtifact(ctx, "com.example", id, types.MustParseVersion("1.0.0"), types.ArtifactoryMaven)
		require.NoError(t, err)
	}

	// Warm the cache so the crawl has to invalidate it
	records, err := f.Search(ctx, classesOnly("alpha"))
	require.NoError(t, err)
	assert.Empty(t, records)

	stats, err := f.NewCrawler(staticFetcher{}, staticParser{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)

	records, err = f.Search(ctx, classesOnly("alpha"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Entry$alpha", records[0].Name)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "nested", "index.db")

	f, err := Open(cfg, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.Sync(ctx))
	status, err := f.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.Path, status.StorageLocation)
	assert.Equal(t, storage.SchemaVersion, status.SchemaVersion)
	require.NoError(t, f.Close())
}
