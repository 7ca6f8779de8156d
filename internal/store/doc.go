// Package store provides durable journals for the recovery queue.
//
// Two implementations share one contract: Load returns every pending task
// ordered by seq, and Save atomically replaces the pending tasks of a single
// target. A crash during Save leaves either the old or the new task list for
// that target, never a mix.
//
// # SQLite journal (default)
//
// Tasks live in one table, recovery_tasks, keyed by seq. Save runs a
// DELETE + INSERT transaction scoped to the target. All reads use
// ORDER BY seq ASC, id COLLATE BINARY ASC so replay order is stable.
//
// Database configuration:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// # File journal
//
// One JSON file per target inside a directory. Save writes a temporary file
// and renames it over the old one. The directory is guarded by an exclusive
// flock so two processes never share a journal.
package store
