package model

import "time"

// OpKind distinguishes the two replicated write operations.
type OpKind string

const (
	// OpUpsert replaces the row with the operation's key.
	OpUpsert OpKind = "upsert"
	// OpDelete removes the row with the operation's key.
	OpDelete OpKind = "delete"
)

// Operation is an idempotent write against one node.
// Upserts carry the full record; deletes carry only the key.
type Operation struct {
	Kind   OpKind  `json:"kind"`
	Key    string  `json:"key"`
	Record *Record `json:"record,omitempty"`
}

// UpsertOp builds an upsert operation for r.
func UpsertOp(r Record) Operation {
	rec := r.Clone()
	return Operation{Kind: OpUpsert, Key: r.Key, Record: &rec}
}

// DeleteOp builds a delete operation for key.
func DeleteOp(key string) Operation {
	return Operation{Kind: OpDelete, Key: key}
}

// RecoveryTask is a write that failed against Target and waits for replay.
//
// Seq orders tasks within a target; tasks replay in ascending Seq.
// EnqueuedAt is the wall-clock time the failure was recorded.
type RecoveryTask struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Target     NodeID    `json:"target"`
	Op         Operation `json:"operation"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}
