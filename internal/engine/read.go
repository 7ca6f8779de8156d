package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/metrics"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/query"
)

// ReadResult is the answer of the first node that served a read.
type ReadResult struct {
	Rows     query.Rows
	ServedBy model.NodeID
	// Failed lists the nodes tried before ServedBy, with their errors.
	Failed []model.Attempt
}

// Query runs stmt against the nodes in order and returns the first
// successful result. With no order the role's failover order is used.
//
// Nodes are tried strictly in order with no retries. If every node fails the
// error is ALL_NODES_UNAVAILABLE carrying each attempt; no partial result is
// returned.
func (e *Engine) Query(ctx context.Context, stmt query.Statement, order ...model.NodeID) (ReadResult, error) {
	if len(order) == 0 {
		order = e.role.FailoverOrder
	}

	var attempts []model.Attempt
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return ReadResult{}, fmt.Errorf("query: %w", err)
		}

		n, ok := e.nodes.Get(id)
		if !ok {
			attempts = append(attempts, model.Attempt{Node: id, Err: errors.New("node not registered")})
			continue
		}

		rows, err := n.Query(ctx, stmt)
		if err == nil {
			e.metrics.ObserveRead(id, metrics.OutcomeServed)
			return ReadResult{Rows: rows, ServedBy: id, Failed: attempts}, nil
		}
		if model.IsValidation(err) {
			return ReadResult{}, err
		}

		e.metrics.ObserveRead(id, metrics.OutcomeFailed)
		slog.Warn("read failed, trying next node", "node", id, "kind", stmt.Kind, "error", err)
		attempts = append(attempts, model.Attempt{Node: id, Err: err})
	}

	return ReadResult{}, model.NewAllNodesUnavailable(attempts)
}

// Get reads one record by key through failover.
func (e *Engine) Get(ctx context.Context, key string, order ...model.NodeID) (model.Record, bool, model.NodeID, error) {
	if err := model.ValidateKey(key); err != nil {
		return model.Record{}, false, "", err
	}

	res, err := e.Query(ctx, query.ByKey(key), order...)
	if err != nil {
		return model.Record{}, false, "", err
	}
	if len(res.Rows) == 0 {
		return model.Record{}, false, res.ServedBy, nil
	}

	rec, err := res.Rows[0].Record()
	if err != nil {
		return model.Record{}, false, res.ServedBy, fmt.Errorf("decode row from %s: %w", res.ServedBy, err)
	}
	return rec, true, res.ServedBy, nil
}
