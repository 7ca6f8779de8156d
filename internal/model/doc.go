// Package model defines the values that flow through the replication engine.
//
// A Record is one movie title row as stored in the dim_title tables. It is
// keyed by tconst and placed on a fragment by its startYear. The engine never
// interprets the remaining attributes; it only normalises and copies them.
//
// A RecoveryTask is a write that could not reach its target node. Tasks are
// self-contained: an upsert carries the full record (replace by key) and a
// delete carries only the key, so replaying a task never depends on prior
// state of the target.
//
// Errors raised by the engine are *Error values carrying one of four codes:
//
//   - VALIDATION: malformed record or key, never retried
//   - NODE_UNAVAILABLE: a single node call failed or timed out
//   - ALL_NODES_UNAVAILABLE: every node in a read's failover order failed
//   - QUEUE_PERSISTENCE: a recovery task could not be written durably
//
// Use IsValidation, IsNodeUnavailable, IsAllNodesUnavailable and
// IsQueuePersistence to classify wrapped errors.
package model
