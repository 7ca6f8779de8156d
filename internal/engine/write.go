package engine

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/metrics"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/partition"
)

// Result reports the outcome of a write.
type Result struct {
	// Accepted is true whenever the write was applied or durably queued.
	Accepted bool `json:"accepted"`
	// QueuedForRecovery is true when at least one target did not receive
	// the write yet and holds it in the recovery queue.
	QueuedForRecovery bool `json:"queuedForRecovery"`
	// Deferred lists the queued targets in canonical node order.
	Deferred []model.NodeID `json:"deferred,omitempty"`
}

// write is one operation bound to one target.
type write struct {
	target model.NodeID
	op     model.Operation
}

// Upsert stores rec on central and on its assigned fragment.
//
// A missing startYear defaults to the current year. If rec previously lived
// on the other fragment, that copy is deleted. Node failures are queued for
// recovery and flagged in the result; only a validation failure or a failure
// to persist a recovery task returns an error.
func (e *Engine) Upsert(ctx context.Context, rec model.Record) (Result, error) {
	rec = rec.WithDefaults(e.clock.Now()).Normalize()
	if err := model.Validate(rec); err != nil {
		return Result{}, err
	}

	fragment := e.rule.FragmentForRecord(rec)
	op := model.UpsertOp(rec)

	writes := []write{
		{target: model.Central, op: op},
		{target: fragment, op: op},
	}
	if e.needsMigration(ctx, rec.Key, fragment) {
		sibling := partition.Sibling(fragment)
		slog.Info("record moved across partition boundary",
			"key", rec.Key,
			"from", sibling,
			"to", fragment,
		)
		writes = append(writes, write{target: sibling, op: model.DeleteOp(rec.Key)})
	}

	return e.replicate(ctx, writes)
}

// Delete removes key from all three nodes. A key's fragment cannot be
// derived from the key alone, so the delete is broadcast.
func (e *Engine) Delete(ctx context.Context, key string) (Result, error) {
	if err := model.ValidateKey(key); err != nil {
		return Result{}, err
	}

	op := model.DeleteOp(key)
	writes := make([]write, 0, 3)
	for _, id := range model.AllNodes() {
		writes = append(writes, write{target: id, op: op})
	}
	return e.replicate(ctx, writes)
}

// needsMigration reports whether a copy of key may sit on the sibling of
// fragment. Central is consulted first; when central is down the sibling
// itself is probed. When neither answers, the delete is issued anyway:
// deleting a missing key is harmless.
func (e *Engine) needsMigration(ctx context.Context, key string, fragment model.NodeID) bool {
	sibling := partition.Sibling(fragment)

	prev, found, err := e.nodes.MustGet(model.Central).Get(ctx, key)
	if err == nil {
		if !found {
			// A copy can only exist without a central row when the central
			// write is still waiting in the queue.
			return e.queue.HasPending(model.Central, key)
		}
		return e.rule.FragmentForRecord(prev) != fragment
	}

	slog.Debug("central lookup failed, probing sibling fragment", "key", key, "sibling", sibling, "error", err)
	_, found, err = e.nodes.MustGet(sibling).Get(ctx, key)
	if err == nil {
		return found
	}
	return true
}

// replicate applies writes concurrently. Each target either applies its
// write or queues it; the first queue persistence failure is returned.
func (e *Engine) replicate(ctx context.Context, writes []write) (Result, error) {
	queued := make([]bool, len(writes))

	var g errgroup.Group
	for i, w := range writes {
		i, w := i, w
		g.Go(func() error {
			q, err := e.writeTo(ctx, w)
			queued[i] = q
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Accepted: true}
	for _, id := range model.AllNodes() {
		for i, w := range writes {
			if queued[i] && w.target == id {
				res.Deferred = append(res.Deferred, id)
				break
			}
		}
	}
	res.QueuedForRecovery = len(res.Deferred) > 0
	return res, nil
}

// writeTo applies w directly, or appends it to the target's recovery lane
// when the node fails or when the lane already holds a task for the same key.
// A direct write must never land ahead of an older queued write for its key,
// or replay would later overwrite it with stale data.
func (e *Engine) writeTo(ctx context.Context, w write) (queued bool, err error) {
	if e.queue.HasPending(w.target, w.op.Key) {
		slog.Debug("earlier write pending, queuing behind it", "target", w.target, "key", w.op.Key)
		return true, e.enqueue(ctx, w)
	}

	err = node.Apply(ctx, e.nodes.MustGet(w.target), w.op)
	if err == nil {
		e.metrics.ObserveWrite(w.target, w.op.Kind, metrics.OutcomeApplied)
		return false, nil
	}
	if model.IsValidation(err) {
		return false, err
	}

	slog.Warn("node write failed, queued for recovery",
		"target", w.target,
		"kind", w.op.Kind,
		"key", w.op.Key,
		"error", err,
	)
	return true, e.enqueue(ctx, w)
}

func (e *Engine) enqueue(ctx context.Context, w write) error {
	// The request context may already be cancelled by the time a slow node
	// call fails; the task must still be recorded.
	if _, err := e.queue.Enqueue(context.WithoutCancel(ctx), w.target, w.op); err != nil {
		var merr *model.Error
		if !errors.As(err, &merr) {
			err = model.NewQueuePersistenceError(w.target, err)
		}
		return err
	}
	e.metrics.ObserveWrite(w.target, w.op.Kind, metrics.OutcomeQueued)
	return nil
}
