// Package searcher implements the query engine over the artifact index.
//
// A search runs in four steps:
//
//  1. Sanitize: trim, replace '.' with '$', lower-case
//  2. Classes: prefix match on class lookups when IncludeClasses is set
//  3. Methods: prefix match on method lookups filtered by the Mode derived
//     from IncludeGlobalMethods and IncludeExtensionMethods
//  4. Rank the merged records against the literal query
//
// # Basic Usage
//
//	s, err := searcher.NewSearcher(db, searcher.Config{CacheSize: 1000}, logger, nil)
//
//	records, err := s.Search(ctx, searcher.SearchParams{
//	    Query:          "RecyclerView.ViewHolder",
//	    IncludeClasses: true,
//	    Limit:          20,
//	})
//
// # Ranking
//
// Exact name matches come first, then case-insensitive name matches, then
// exact lookup key matches, then prefix matches. Ties are ordered by name,
// package, group, artifact, newest version and kind.
//
// # Caching
//
// Results are cached in an LRU keyed by the request with a TTL. Invalidate
// drops the cache and must be called after every index write.
package searcher
