// Package crawler drains the pending-work queue with a pool of workers.
//
// Each worker claims an entry, fetches it, parses it and hands the result
// to a Saver. Fetching and parsing are supplied by the caller:
//
//	c := crawler.New(q, idx, fetcher, parser, crawler.Config{Workers: 4}, logger, m)
//	stats, err := c.Run(ctx)
//
// A failed entry has its retry counter incremented once and is excluded for
// the rest of the run. Entries whose counter reached Config.MaxRetries are
// skipped. Fetches are retried with exponential backoff inside a run unless
// the Fetcher wraps its error with Permanent.
//
// Only one Run is active per Crawler; a concurrent call fails with
// ErrCrawlInProgress.
package crawler
