// Package jobs implements background work that runs independently of HTTP
// request handling.
//
// # Job Types
//
//   - CollectionStats: Publishes per-collection document counts as a
//     Prometheus gauge
//
// # Lifecycle
//
// Jobs are started once and stopped on shutdown:
//
//	stats := jobs.NewCollectionStats(store, reg, time.Minute, logger)
//	stats.Start()
//	defer stats.Stop()
//
// RunOnce performs a single pass synchronously, for tests or manual triggers.
//
// # Error Handling
//
// Jobs log errors but don't crash the application. A failed pass is retried
// on the next tick.
package jobs
