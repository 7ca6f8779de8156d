// Package engine replicates title writes across the central node and the
// fragments, and serves reads with failover.
//
// One Engine serves every deployment role. The Role names the local node and
// the read failover order; the replication policy is the same everywhere:
//
//   - central is authoritative: a failed central write is queued for recovery
//     and the call still succeeds, flagged QueuedForRecovery
//   - the assigned fragment is best-effort: a failed fragment write is queued
//     and logged, never surfaced
//   - deletes are broadcast to all three nodes
//   - an upsert that moves a record across the partition boundary deletes
//     the copy on the previous fragment
//
// Only a failure to persist a recovery task fails a write; an unpersisted
// task would be silent data loss.
//
// Reads try nodes strictly in failover order and return the first success.
// A fragment answers only for its own partition, and any node may lag
// behind writes still waiting in the recovery queue, so read results may be
// stale relative to a recent write.
package engine
