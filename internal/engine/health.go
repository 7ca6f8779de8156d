package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// NodeStatus is the liveness of one node plus its recovery backlog.
type NodeStatus struct {
	Node    model.NodeID `json:"node"`
	Up      bool         `json:"up"`
	Pending int          `json:"pending"`
	Error   string       `json:"error,omitempty"`
}

// Health pings every node concurrently. Results are in canonical node order.
func (e *Engine) Health(ctx context.Context) []NodeStatus {
	ids := model.AllNodes()
	out := make([]NodeStatus, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			st := NodeStatus{Node: id, Pending: len(e.queue.Pending(id))}
			if err := e.nodes.MustGet(id).Ping(ctx); err != nil {
				st.Error = err.Error()
			} else {
				st.Up = true
			}
			e.metrics.SetNodeUp(id, st.Up)
			out[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return out
}
