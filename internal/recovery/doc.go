// Package recovery holds writes that failed against a node until they can be
// replayed.
//
// The Queue keeps one lane per target node. Each lane is an ordered list of
// tasks persisted through a Journal on every mutation; a task is only removed
// from memory after the journal confirms the removal. Lanes are independent:
// a target that stays down never blocks replay of another target.
//
// Replay walks a lane head-first and stops at the first failure, so tasks for
// one target are applied strictly in seq order. A per-lane guard keeps two
// replay cycles from running against the same target at once.
//
// The Replayer drives replay on a fixed interval using a clockwork clock, so
// tests can advance time deterministically.
package recovery
