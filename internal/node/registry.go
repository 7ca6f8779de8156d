package node

import (
	"errors"
	"fmt"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// Registry holds the node set by identifier. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	nodes map[model.NodeID]Node
}

// NewRegistry builds a registry from nodes. All three node identifiers must
// be present exactly once.
func NewRegistry(nodes ...Node) (*Registry, error) {
	r := &Registry{nodes: make(map[model.NodeID]Node, len(nodes))}
	for _, n := range nodes {
		id := n.ID()
		if !id.Valid() {
			return nil, fmt.Errorf("invalid node id %q", id)
		}
		if _, dup := r.nodes[id]; dup {
			return nil, fmt.Errorf("duplicate node %s", id)
		}
		r.nodes[id] = n
	}
	for _, id := range model.AllNodes() {
		if _, ok := r.nodes[id]; !ok {
			return nil, fmt.Errorf("missing node %s", id)
		}
	}
	return r, nil
}

// Get returns the node for id.
func (r *Registry) Get(id model.NodeID) (Node, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// MustGet returns the node for id and panics if it is not registered.
func (r *Registry) MustGet(id model.NodeID) Node {
	n, ok := r.nodes[id]
	if !ok {
		panic(fmt.Sprintf("node %s not registered", id))
	}
	return n
}

// All returns the nodes in canonical order: central, fragment-a, fragment-b.
func (r *Registry) All() []Node {
	out := make([]Node, 0, len(r.nodes))
	for _, id := range model.AllNodes() {
		out = append(out, r.nodes[id])
	}
	return out
}

// Close closes every node that holds resources.
func (r *Registry) Close() error {
	var errs []error
	for _, n := range r.All() {
		if c, ok := n.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", n.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
